package jeebie

import (
	"fmt"
	"io/ioutil"
	"log/slog"
	"sync"

	"github.com/baremetal-gb/gbcore/jeebie/addr"
	"github.com/baremetal-gb/gbcore/jeebie/audio"
	"github.com/baremetal-gb/gbcore/jeebie/cpu"
	"github.com/baremetal-gb/gbcore/jeebie/debug"
	"github.com/baremetal-gb/gbcore/jeebie/input/action"
	"github.com/baremetal-gb/gbcore/jeebie/memory"
	"github.com/baremetal-gb/gbcore/jeebie/state"
	"github.com/baremetal-gb/gbcore/jeebie/timing"
	"github.com/baremetal-gb/gbcore/jeebie/video"
)

// DebuggerState represents the current debugger mode
type DebuggerState int

const (
	DebuggerRunning   DebuggerState = iota // Normal execution
	DebuggerPaused                         // Paused, waiting for commands
	DebuggerStep                           // Execute one instruction then pause
	DebuggerStepFrame                      // Execute one frame then pause
)

// DMG is the root struct and entry point for running the emulation of an
// original DMG or CGB console.
type DMG struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mem *memory.MMU

	limiter timing.Limiter

	// Debugger state
	debuggerState    DebuggerState
	debuggerMutex    sync.RWMutex
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64
}

func (e *DMG) init(mem *memory.MMU) {
	e.cpu = cpu.New(mem)
	e.gpu = video.NewGpu(mem)
	e.mem = mem
	e.limiter = timing.NewNoOpLimiter()

	mem.SetTimerSeed(0xABCC)
}

// New creates a new emulator instance
func New() *DMG {
	e := &DMG{}
	e.init(memory.NewWithCartridge(memory.NewCartridge()))

	return e
}

// NewWithFile creates a new emulator instance and loads the file specified into it.
func NewWithFile(path string) (*DMG, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded ROM data", "size", len(data))

	cart, err := memory.NewCartridgeWithData(data, false, false)
	if err != nil {
		return nil, err
	}

	e := &DMG{}
	e.init(memory.NewWithCartridge(cart))

	return e, nil
}

// NewWithData creates a new emulator instance from raw ROM bytes, e.g. a ROM
// streamed from a platform.Filesystem via the jeebie/romselect menu rather
// than loaded from a local path.
func NewWithData(data []byte, skipChecksum, classicOnly bool) (*DMG, error) {
	cart, err := memory.NewCartridgeWithData(data, skipChecksum, classicOnly)
	if err != nil {
		return nil, err
	}

	e := &DMG{}
	e.init(memory.NewWithCartridge(cart))

	return e, nil
}

// NewWithMMU creates a new emulator instance wired to an already-constructed
// MMU. Useful when the caller needs to configure cartridge state (e.g.
// priming battery RAM before boot) that the path/data-based constructors
// don't expose.
func NewWithMMU(mem *memory.MMU) *DMG {
	e := &DMG{}
	e.init(mem)

	return e
}

func (e *DMG) RunUntilFrame() error {
	e.debuggerMutex.RLock()
	state := e.debuggerState
	e.debuggerMutex.RUnlock()

	// Handle paused state - don't execute anything
	if state == DebuggerPaused {
		e.limiter.WaitForNextFrame()
		return nil
	}

	// Handle step instruction - execute one instruction then pause
	if state == DebuggerStep {
		e.debuggerMutex.Lock()
		if e.stepRequested {
			e.stepRequested = false
			e.debuggerMutex.Unlock()

			// Execute one CPU instruction
			oldPC := e.cpu.GetPC()
			e.stepSystems()

			// Log the executed instruction
			slog.Debug("Step executed", "pc", fmt.Sprintf("0x%04X", oldPC), "new_pc", fmt.Sprintf("0x%04X", e.cpu.GetPC()))

			// Pause after execution
			e.SetDebuggerState(DebuggerPaused)
		} else {
			e.debuggerMutex.Unlock()
		}
		e.limiter.WaitForNextFrame()
		return nil
	}

	// Handle step frame - execute one frame then pause
	if state == DebuggerStepFrame {
		e.debuggerMutex.Lock()
		frameRequested := e.frameRequested
		if frameRequested {
			e.frameRequested = false
		}
		e.debuggerMutex.Unlock()

		if frameRequested {
			// Execute one full frame
			total := 0
			for {
				total += e.stepSystems()

				if total >= 70224 {
					break
				}
			}
			e.frameCount++
			slog.Debug("Frame step completed", "frame", e.frameCount, "instructions", e.instructionCount)
			e.SetDebuggerState(DebuggerPaused)
		}
		e.limiter.WaitForNextFrame()
		return nil
	}

	// Normal execution (DebuggerRunning)
	total := 0
	for {
		total += e.stepSystems()

		if total >= 70224 {
			e.frameCount++
			// Log every 60 frames (once per second at 60 FPS) only when running
			if e.frameCount%60 == 0 {
				slog.Debug("Frame completed", "frame", e.frameCount, "pc", fmt.Sprintf("0x%04X", e.cpu.GetPC()))
			}
			e.limiter.WaitForNextFrame()
			return nil
		}
	}
}

// stepSystems executes a single CPU instruction and ticks the rest of the
// machine to match. On CGB in double speed mode, the CPU consumes cycles
// twice as fast as the PPU/timer/HDMA, which keep running at the normal
// 4.194304 MHz rate; the returned value is the cycle count normalized to
// that fixed rate, which is what frame-length accounting (70224 cycles)
// must use regardless of CPU speed.
func (e *DMG) stepSystems() int {
	cycles := e.cpu.Step()
	e.instructionCount++

	normalized := cycles
	if e.mem.IsDoubleSpeed() {
		normalized = cycles / 2
	}

	e.mem.Tick(normalized)
	e.gpu.Tick(normalized)

	return normalized
}

func (e *DMG) GetCurrentFrame() *video.FrameBuffer {
	return e.gpu.GetFrameBuffer()
}

// HandleAction translates a frontend action into the joypad press/release or
// debugger control it corresponds to. Actions outside those two categories
// are ignored, since DMG has no test-pattern or backend-specific state of
// its own.
func (e *DMG) HandleAction(act action.Action, pressed bool) {
	if key, ok := joypadKeyForAction(act); ok {
		if pressed {
			e.mem.HandleKeyPress(key)
		} else {
			e.mem.HandleKeyRelease(key)
		}
		return
	}

	if !pressed {
		return
	}

	switch act {
	case action.EmulatorPauseToggle:
		if e.GetDebuggerState() == DebuggerPaused {
			e.DebuggerResume()
		} else {
			e.DebuggerPause()
		}
	case action.EmulatorStepInstruction:
		e.DebuggerStepInstruction()
	case action.EmulatorStepFrame:
		e.DebuggerStepFrame()
	case action.AudioToggleChannel1:
		e.mem.APU.ToggleChannel(0)
	case action.AudioToggleChannel2:
		e.mem.APU.ToggleChannel(1)
	case action.AudioToggleChannel3:
		e.mem.APU.ToggleChannel(2)
	case action.AudioToggleChannel4:
		e.mem.APU.ToggleChannel(3)
	case action.AudioSoloChannel1:
		e.mem.APU.SoloChannel(0)
	case action.AudioSoloChannel2:
		e.mem.APU.SoloChannel(1)
	case action.AudioSoloChannel3:
		e.mem.APU.SoloChannel(2)
	case action.AudioSoloChannel4:
		e.mem.APU.SoloChannel(3)
	}
}

func joypadKeyForAction(act action.Action) (memory.JoypadKey, bool) {
	switch act {
	case action.GBButtonA:
		return memory.JoypadA, true
	case action.GBButtonB:
		return memory.JoypadB, true
	case action.GBButtonStart:
		return memory.JoypadStart, true
	case action.GBButtonSelect:
		return memory.JoypadSelect, true
	case action.GBDPadUp:
		return memory.JoypadUp, true
	case action.GBDPadDown:
		return memory.JoypadDown, true
	case action.GBDPadLeft:
		return memory.JoypadLeft, true
	case action.GBDPadRight:
		return memory.JoypadRight, true
	}
	return 0, false
}

// ExtractDebugData snapshots CPU, memory and interrupt state for the
// debugger and backend overlays. It returns nil if the emulator has not
// been initialized yet (e.g. a zero-value DMG).
func (e *DMG) ExtractDebugData() *debug.CompleteDebugData {
	if e.cpu == nil || e.gpu == nil || e.mem == nil {
		return nil
	}

	const snapshotRadius = 16 // bytes before/after pc, before truncation

	pc := e.cpu.GetPC()
	snapshotStart := pc
	if snapshotStart > snapshotRadius {
		snapshotStart -= snapshotRadius
	} else {
		snapshotStart = 0
	}

	snapshotSize := snapshotRadius * 2
	if uint32(snapshotStart)+uint32(snapshotSize) > 0x10000 {
		snapshotSize = int(0x10000 - uint32(snapshotStart))
	}

	bytes := make([]uint8, snapshotSize)
	for i := range bytes {
		bytes[i] = e.mem.Read(snapshotStart + uint16(i))
	}

	cpuState := &debug.CPUState{
		A: e.cpu.GetA(), F: e.cpu.GetF(),
		B: e.cpu.GetB(), C: e.cpu.GetC(),
		D: e.cpu.GetD(), E: e.cpu.GetE(),
		H: e.cpu.GetH(), L: e.cpu.GetL(),
		SP:     e.cpu.GetSP(),
		PC:     pc,
		IME:    e.cpu.IME(),
		Cycles: e.cpu.Cycles(),
	}

	ie := e.mem.Read(addr.IE)
	if_ := e.mem.Read(addr.IF)

	spriteHeight := 8
	if e.mem.Read(addr.LCDC)&0x04 != 0 {
		spriteHeight = 16
	}

	return &debug.CompleteDebugData{
		OAM:             debug.ExtractOAMData(e.mem, int(e.mem.Read(addr.LY)), spriteHeight),
		VRAM:            debug.ExtractVRAMData(e.mem),
		CPU:             cpuState,
		Memory:          &debug.MemorySnapshot{StartAddr: snapshotStart, Bytes: bytes},
		DebuggerState:   debug.DebuggerState(e.GetDebuggerState()),
		InterruptEnable: ie,
		InterruptFlags:  if_,
	}
}

// SetFrameLimiter installs the pacing strategy used between frames. A nil
// limiter disables pacing entirely (used by headless/benchmark runs).
func (e *DMG) SetFrameLimiter(limiter timing.Limiter) {
	if limiter == nil {
		e.limiter = timing.NewNoOpLimiter()
	} else {
		e.limiter = limiter
	}
}

// ResetFrameTiming resets the installed limiter's internal clock, used after
// resuming from a pause so the next frame isn't rushed to catch up.
func (e *DMG) ResetFrameTiming() {
	e.limiter.Reset()
}

// GetAudioProvider exposes the APU to backends that render or mix audio.
func (e *DMG) GetAudioProvider() audio.Provider {
	return e.mem.APU
}

func (e *DMG) HandleKeyPress(key memory.JoypadKey) {
	e.mem.HandleKeyPress(key)
}

func (e *DMG) HandleKeyRelease(key memory.JoypadKey) {
	e.mem.HandleKeyRelease(key)
}

func (e *DMG) GetCPU() *cpu.CPU {
	return e.cpu
}

// Debugger control methods
func (e *DMG) SetDebuggerState(state DebuggerState) {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.debuggerState = state
	slog.Debug("Debugger state changed", "state", state)
}

func (e *DMG) GetDebuggerState() DebuggerState {
	e.debuggerMutex.RLock()
	defer e.debuggerMutex.RUnlock()
	return e.debuggerState
}

func (e *DMG) DebuggerPause() {
	e.SetDebuggerState(DebuggerPaused)
	slog.Info("Emulator paused")
}

func (e *DMG) DebuggerResume() {
	e.SetDebuggerState(DebuggerRunning)
	e.ResetFrameTiming()
	slog.Info("Emulator resumed")
}

func (e *DMG) DebuggerStepInstruction() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.stepRequested = true
	e.debuggerState = DebuggerStep
	slog.Info("Step instruction requested")
}

func (e *DMG) DebuggerStepFrame() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.frameRequested = true
	e.debuggerState = DebuggerStepFrame
	slog.Info("Step frame requested")
}

func (e *DMG) GetInstructionCount() uint64 {
	return e.instructionCount
}

func (e *DMG) GetFrameCount() uint64 {
	return e.frameCount
}

func (e *DMG) GetMMU() *memory.MMU {
	return e.mem
}

// SaveState captures the full machine state (CPU, MMU, PPU) as a versioned
// snapshot per spec.md §6, suitable for writing to a state file alongside the
// ROM's .sav battery file.
func (e *DMG) SaveState() ([]byte, error) {
	return state.Save(e.cpu, e.mem, e.gpu)
}

// LoadState restores a snapshot previously produced by SaveState. The
// receiver must already have the same ROM loaded (e.g. via NewWithFile or
// NewWithData against the same data SaveState was called against), since the
// cartridge RAM section is validated against the currently loaded MBC.
func (e *DMG) LoadState(data []byte) error {
	return state.Load(data, e.cpu, e.mem, e.gpu)
}
