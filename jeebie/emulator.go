package jeebie

import (
	"github.com/baremetal-gb/gbcore/jeebie/debug"
	"github.com/baremetal-gb/gbcore/jeebie/input/action"
	"github.com/baremetal-gb/gbcore/jeebie/timing"
	"github.com/baremetal-gb/gbcore/jeebie/video"
)

// Emulator is the interface for all emulator implementations
type Emulator interface {
	RunUntilFrame() error
	GetCurrentFrame() *video.FrameBuffer
	HandleAction(act action.Action, pressed bool)
	ExtractDebugData() *debug.CompleteDebugData
	SetFrameLimiter(limiter timing.Limiter)
	ResetFrameTiming()
}

var _ Emulator = (*DMG)(nil)
