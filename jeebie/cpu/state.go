package cpu

import (
	"encoding/binary"
	"io"
)

// WriteState serializes the register file and CPU scalars for the save-state
// format: A,F,B,C,D,E,H,L, SP, PC (12 bytes), followed by halted, haltBug,
// ime, a reserved byte (this CPU has no delayed-DI state, unlike the
// one-instruction EI delay below), setei (eiPending) and stopped.
func (c *CPU) WriteState(w io.Writer) error {
	regs := []byte{c.a, c.f, c.b, c.c, c.d, c.e, c.h, c.l}
	if _, err := w.Write(regs); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.sp); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.pc); err != nil {
		return err
	}

	scalars := []byte{
		boolToByte(c.halted),
		boolToByte(c.haltBug),
		boolToByte(c.interruptsEnabled),
		0, // reserved: no delayed-DI state in this implementation
		boolToByte(c.eiPending),
		boolToByte(c.stopped),
	}
	_, err := w.Write(scalars)
	return err
}

// ReadState restores a register file and CPU scalars written by WriteState.
func (c *CPU) ReadState(r io.Reader) error {
	regs := make([]byte, 8)
	if _, err := io.ReadFull(r, regs); err != nil {
		return err
	}
	c.a, c.f, c.b, c.c, c.d, c.e, c.h, c.l = regs[0], regs[1], regs[2], regs[3], regs[4], regs[5], regs[6], regs[7]

	if err := binary.Read(r, binary.LittleEndian, &c.sp); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.pc); err != nil {
		return err
	}

	scalars := make([]byte, 6)
	if _, err := io.ReadFull(r, scalars); err != nil {
		return err
	}
	c.halted = scalars[0] != 0
	c.haltBug = scalars[1] != 0
	c.interruptsEnabled = scalars[2] != 0
	// scalars[3] is the reserved delayed-DI slot; nothing to restore.
	c.eiPending = scalars[4] != 0
	c.stopped = scalars[5] != 0

	return nil
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
