// Package state implements the versioned save-state format of spec.md §6: a
// leading version byte followed by the CPU register file/scalars, the MMU's
// memory-mapped state (WRAM, HRAM, HDMA, timer, keypad, serial, battery RAM)
// and the PPU's VRAM/OAM/palette RAM, each written with explicit
// encoding/binary little-endian calls rather than a reflection-based codec.
package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/baremetal-gb/gbcore/jeebie/cpu"
	"github.com/baremetal-gb/gbcore/jeebie/memory"
	"github.com/baremetal-gb/gbcore/jeebie/video"
)

// Version is the current save-state format version, written as the first
// byte of every snapshot.
const Version = 1

// ErrInvalidSaveState is returned by Load when the data doesn't look like a
// save-state this version can restore: wrong version byte, truncated
// sections, or a cartridge RAM section whose length doesn't match the
// currently loaded MBC.
var ErrInvalidSaveState = errors.New("state: invalid save state")

// Save serializes the full emulator state (CPU, MMU, PPU) into a single
// byte slice suitable for writing to a .sav-adjacent state file.
func Save(c *cpu.CPU, m *memory.MMU, g *video.GPU) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(Version)

	if err := c.WriteState(&buf); err != nil {
		return nil, fmt.Errorf("state: writing cpu: %w", err)
	}
	if err := m.WriteState(&buf); err != nil {
		return nil, fmt.Errorf("state: writing mmu: %w", err)
	}
	if err := g.WriteState(&buf); err != nil {
		return nil, fmt.Errorf("state: writing gpu: %w", err)
	}

	return buf.Bytes(), nil
}

// Load restores a full emulator state previously produced by Save, in place,
// into the given CPU/MMU/GPU. The cartridge must already be loaded into m
// (e.g. via memory.NewWithCartridge with the same ROM Save was called
// against) so the battery-RAM section can be validated against the active
// MBC's expected length.
func Load(data []byte, c *cpu.CPU, m *memory.MMU, g *video.GPU) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: empty data", ErrInvalidSaveState)
	}
	if data[0] != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidSaveState, data[0], Version)
	}

	r := bytes.NewReader(data[1:])

	if err := c.ReadState(r); err != nil {
		return fmt.Errorf("%w: cpu: %v", ErrInvalidSaveState, err)
	}
	if err := m.ReadState(r); err != nil {
		return fmt.Errorf("%w: mmu: %v", ErrInvalidSaveState, err)
	}
	if err := g.ReadState(r); err != nil {
		return fmt.Errorf("%w: gpu: %v", ErrInvalidSaveState, err)
	}

	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidSaveState, r.Len())
	}

	return nil
}
