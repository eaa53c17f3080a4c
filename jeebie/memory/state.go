package memory

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/baremetal-gb/gbcore/jeebie/addr"
)

// WriteState serializes the timer's internal counters and registers.
func (t *Timer) WriteState(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, t.systemCounter); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(t.timaOverflow)); err != nil {
		return err
	}
	flags := []byte{boolToByte(t.lastTimerBit), boolToByte(t.timaDelayInt), t.div, t.tima, t.tma, t.tac}
	if _, err := w.Write(flags); err != nil {
		return err
	}
	// Pad to a fixed 16-byte record (spec.md timer section), leaving room for
	// platform-specific timer extensions without breaking the save version.
	_, err := w.Write(make([]byte, 16-2-4-len(flags)))
	return err
}

// ReadState restores a timer previously written by WriteState.
func (t *Timer) ReadState(r io.Reader) error {
	if err := binary.Read(r, binary.LittleEndian, &t.systemCounter); err != nil {
		return err
	}
	var overflow int32
	if err := binary.Read(r, binary.LittleEndian, &overflow); err != nil {
		return err
	}
	t.timaOverflow = int(overflow)

	flags := make([]byte, 6)
	if _, err := io.ReadFull(r, flags); err != nil {
		return err
	}
	t.lastTimerBit = flags[0] != 0
	t.timaDelayInt = flags[1] != 0
	t.div, t.tima, t.tma, t.tac = flags[2], flags[3], flags[4], flags[5]

	_, err := io.ReadFull(r, make([]byte, 16-2-4-6))
	return err
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// WriteState serializes everything spec.md's save-state format groups under
// the MMU: banked WRAM, HRAM, HDMA registers, IE/IF, the active WRAM bank,
// CGB mode/speed/HDMA status, the undocumented CGB palette-index registers,
// the timer, the keypad latch, the two serial registers, and finally the
// cartridge's battery-backed RAM (length-prefixed, since its size depends on
// the loaded MBC).
func (m *MMU) WriteState(w io.Writer) error {
	if _, err := w.Write(m.memory[0xC000:0xE000]); err != nil {
		return err
	}
	for i := range m.cgb.wramBanks {
		if _, err := w.Write(m.cgb.wramBanks[i][:]); err != nil {
			return err
		}
	}

	if _, err := w.Write(m.memory[0xFF80:0xFFFF]); err != nil {
		return err
	}

	hdma := struct {
		Src, Dst, Length uint16
	}{m.cgb.hdmaSrc, m.cgb.hdmaDst, m.cgb.hdmaLength}
	if err := binary.Write(w, binary.LittleEndian, hdma); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(m.cgb.hdmaMode), boolToByte(m.cgb.hdmaActive)}); err != nil {
		return err
	}

	if _, err := w.Write([]byte{m.memory[addr.IE], m.memory[addr.IF], m.cgb.wramBank}); err != nil {
		return err
	}

	modeBits := []byte{boolToByte(m.cgb.enabled), boolToByte(m.cgb.doubleSpeed), boolToByte(m.cgb.speedSwitchArmed), 0}
	if _, err := w.Write(modeBits); err != nil {
		return err
	}

	// Undocumented CGB registers: current VRAM bank and the BG/OBJ palette
	// index registers, auto-increment folded into bit 7 exactly as BCPS/OCPS
	// present it on real hardware (see readBCPS/readOCPS).
	bgIdx, objIdx := m.cgb.bgIndex, m.cgb.objIndex
	if m.cgb.bgAutoInc {
		bgIdx |= 0x80
	}
	if m.cgb.objAutoInc {
		objIdx |= 0x80
	}
	if _, err := w.Write([]byte{m.cgb.vramBank, bgIdx, objIdx}); err != nil {
		return err
	}

	if err := m.timer.WriteState(w); err != nil {
		return err
	}

	if _, err := w.Write([]byte{m.joypadButtons, m.joypadDpad, m.memory[addr.P1]}); err != nil {
		return err
	}

	if _, err := w.Write([]byte{m.serial.Read(addr.SB), m.serial.Read(addr.SC)}); err != nil {
		return err
	}

	ram := m.ExportRAM()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ram))); err != nil {
		return err
	}
	_, err := w.Write(ram)
	return err
}

// ReadState restores an MMU previously written by WriteState. The cartridge
// must already be loaded (NewWithCartridge) so the battery RAM section can be
// validated against the active MBC's expected length.
func (m *MMU) ReadState(r io.Reader) error {
	if _, err := io.ReadFull(r, m.memory[0xC000:0xE000]); err != nil {
		return err
	}
	for i := range m.cgb.wramBanks {
		if _, err := io.ReadFull(r, m.cgb.wramBanks[i][:]); err != nil {
			return err
		}
	}

	if _, err := io.ReadFull(r, m.memory[0xFF80:0xFFFF]); err != nil {
		return err
	}

	var hdma struct {
		Src, Dst, Length uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &hdma); err != nil {
		return err
	}
	m.cgb.hdmaSrc, m.cgb.hdmaDst, m.cgb.hdmaLength = hdma.Src, hdma.Dst, hdma.Length

	hdmaFlags := make([]byte, 2)
	if _, err := io.ReadFull(r, hdmaFlags); err != nil {
		return err
	}
	m.cgb.hdmaMode = hdmaMode(hdmaFlags[0])
	m.cgb.hdmaActive = hdmaFlags[1] != 0

	core := make([]byte, 3)
	if _, err := io.ReadFull(r, core); err != nil {
		return err
	}
	m.memory[addr.IE], m.memory[addr.IF], m.cgb.wramBank = core[0], core[1], core[2]

	modeBits := make([]byte, 4)
	if _, err := io.ReadFull(r, modeBits); err != nil {
		return err
	}
	m.cgb.enabled = modeBits[0] != 0
	m.cgb.doubleSpeed = modeBits[1] != 0
	m.cgb.speedSwitchArmed = modeBits[2] != 0

	cgbRegs := make([]byte, 3)
	if _, err := io.ReadFull(r, cgbRegs); err != nil {
		return err
	}
	m.cgb.vramBank = cgbRegs[0]
	m.cgb.bgAutoInc = cgbRegs[1]&0x80 != 0
	m.cgb.bgIndex = cgbRegs[1] & 0x3F
	m.cgb.objAutoInc = cgbRegs[2]&0x80 != 0
	m.cgb.objIndex = cgbRegs[2] & 0x3F

	if err := m.timer.ReadState(r); err != nil {
		return err
	}

	keypad := make([]byte, 3)
	if _, err := io.ReadFull(r, keypad); err != nil {
		return err
	}
	m.joypadButtons, m.joypadDpad, m.memory[addr.P1] = keypad[0], keypad[1], keypad[2]

	serialRegs := make([]byte, 2)
	if _, err := io.ReadFull(r, serialRegs); err != nil {
		return err
	}
	m.serial.Write(addr.SB, serialRegs[0])
	m.serial.Write(addr.SC, serialRegs[1])

	var ramLen uint32
	if err := binary.Read(r, binary.LittleEndian, &ramLen); err != nil {
		return err
	}
	ram := make([]byte, ramLen)
	if _, err := io.ReadFull(r, ram); err != nil {
		return err
	}
	if err := m.ImportRAM(ram); err != nil {
		return fmt.Errorf("memory: restoring cartridge ram: %w", err)
	}

	return nil
}

// VRAMBytes returns the full 16 KiB of VRAM (bank 0 followed by bank 1,
// present even on DMG carts where bank 1 simply stays zeroed), for the
// jeebie/video save-state section.
func (m *MMU) VRAMBytes() []byte {
	out := make([]byte, 0x4000)
	copy(out, m.memory[0x8000:0xA000])
	copy(out[0x2000:], m.cgb.vramBank1[:])
	return out
}

// SetVRAMBytes restores VRAM previously captured with VRAMBytes.
func (m *MMU) SetVRAMBytes(data []byte) error {
	if len(data) != 0x4000 {
		return fmt.Errorf("memory: vram snapshot has %d bytes, want 0x4000", len(data))
	}
	copy(m.memory[0x8000:0xA000], data[:0x2000])
	copy(m.cgb.vramBank1[:], data[0x2000:])
	return nil
}

// OAMBytes returns the 160-byte sprite attribute table.
func (m *MMU) OAMBytes() []byte {
	out := make([]byte, 160)
	copy(out, m.memory[addr.OAMStart:addr.OAMEnd+1])
	return out
}

// SetOAMBytes restores OAM previously captured with OAMBytes.
func (m *MMU) SetOAMBytes(data []byte) error {
	if len(data) != 160 {
		return fmt.Errorf("memory: oam snapshot has %d bytes, want 160", len(data))
	}
	copy(m.memory[addr.OAMStart:addr.OAMEnd+1], data)
	return nil
}

// PaletteBytes returns the 64-byte BG and OBJ CGB palette RAM arrays.
func (m *MMU) PaletteBytes() (bg, obj []byte) {
	bg = append([]byte(nil), m.cgb.bgPalette[:]...)
	obj = append([]byte(nil), m.cgb.objPalette[:]...)
	return bg, obj
}

// SetPaletteBytes restores CGB palette RAM previously captured with
// PaletteBytes.
func (m *MMU) SetPaletteBytes(bg, obj []byte) error {
	if len(bg) != 64 || len(obj) != 64 {
		return fmt.Errorf("memory: palette snapshot has %d/%d bytes, want 64/64", len(bg), len(obj))
	}
	copy(m.cgb.bgPalette[:], bg)
	copy(m.cgb.objPalette[:], obj)
	return nil
}
