package cpu

import (
	"github.com/baremetal-gb/gbcore/jeebie/addr"
	"github.com/baremetal-gb/gbcore/jeebie/bit"
	"github.com/baremetal-gb/gbcore/jeebie/memory"
)

// Flag is one of the 4 possible flags used in the flag register (F).
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// interruptVectors holds the dispatch address for each of the 5 interrupt
// sources, ordered by priority (lowest bit first).
var interruptVectors = [5]uint16{0x40, 0x48, 0x50, 0x58, 0x60}

// CPU is the main struct holding the Sharp LR35902 state.
type CPU struct {
	bus *memory.MMU

	a, b, c, d, e, h, l, f uint8
	sp, pc                 uint16

	currentOpcode uint16

	interruptsEnabled bool
	eiPending         bool
	halted            bool
	haltBug           bool
	stopped           bool

	cycles uint64
}

// New creates a CPU wired to the given bus, with registers in their
// post-bootrom power-up state.
func New(bus *memory.MMU) *CPU {
	return &CPU{
		bus: bus,
		a:   0x01,
		f:   0xB0,
		b:   0x00,
		c:   0x13,
		d:   0x00,
		e:   0xD8,
		h:   0x01,
		l:   0x4D,
		sp:  0xFFFE,
		pc:  0x100,
	}
}

// GetPC returns the current program counter, for disassembly and debugging.
func (c *CPU) GetPC() uint16 {
	return c.pc
}

// GetSP returns the current stack pointer, for disassembly and debugging.
func (c *CPU) GetSP() uint16 {
	return c.sp
}

func (c *CPU) GetA() uint8 { return c.a }
func (c *CPU) GetF() uint8 { return c.f }
func (c *CPU) GetB() uint8 { return c.b }
func (c *CPU) GetC() uint8 { return c.c }
func (c *CPU) GetD() uint8 { return c.d }
func (c *CPU) GetE() uint8 { return c.e }
func (c *CPU) GetH() uint8 { return c.h }
func (c *CPU) GetL() uint8 { return c.l }

// IME reports whether interrupts are currently enabled on the CPU.
func (c *CPU) IME() bool {
	return c.interruptsEnabled
}

// Cycles returns the total number of T-cycles executed since reset.
func (c *CPU) Cycles() uint64 {
	return c.cycles
}

// GetFlagString renders the flag register as "ZNHC", with a dash standing in
// for any flag that is not set.
func (c *CPU) GetFlagString() string {
	flags := [4]struct {
		letter byte
		flag   Flag
	}{
		{'Z', zeroFlag},
		{'N', subFlag},
		{'H', halfCarryFlag},
		{'C', carryFlag},
	}

	out := make([]byte, 4)
	for i, f := range flags {
		if c.isSetFlag(f.flag) {
			out[i] = f.letter
		} else {
			out[i] = '-'
		}
	}

	return string(out)
}

func (c *CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f&0xF0)
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

// flagToBit returns 1 if the flag is set, 0 otherwise.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}

	return 0
}

// readImmediate fetches the byte following the current opcode and advances pc past it.
func (c *CPU) readImmediate() uint8 {
	value := c.bus.Read(c.pc)
	c.pc++
	return value
}

// readSignedImmediate fetches the signed byte following the current opcode and advances pc past it.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord fetches the little endian word following the current opcode and advances pc past it.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

// halt puts the CPU to sleep until an interrupt occurs, per the precondition
// in the pandocs HALT entry: when IME is 0 and an interrupt is already
// pending at the time HALT executes, the CPU does not actually halt and
// instead triggers the HALT bug (the next byte fetch is not advanced, so the
// following instruction's first byte is read twice).
func (c *CPU) halt() {
	pending := c.bus.Read(addr.IE) & c.bus.Read(addr.IF) & 0x1F

	if !c.interruptsEnabled && pending != 0 {
		c.haltBug = true
		return
	}

	c.halted = true
}

// handleInterrupts services the highest priority pending interrupt if IME is
// set, and reports whether any interrupt is pending regardless of IME (used
// to wake the CPU from HALT). Dispatching an interrupt costs 20 cycles and
// clears IME so the handler itself is not re-interrupted.
func (c *CPU) handleInterrupts() bool {
	requested := c.bus.Read(addr.IF) & c.bus.Read(addr.IE) & 0x1F

	if requested == 0 {
		return false
	}

	if !c.interruptsEnabled {
		return true
	}

	for i := uint8(0); i < 5; i++ {
		if requested&(1<<i) == 0 {
			continue
		}

		c.interruptsEnabled = false
		c.bus.Write(addr.IF, c.bus.Read(addr.IF)&^(1<<i))
		c.pushStack(c.pc)
		c.pc = interruptVectors[i]
		c.cycles += 20
		return true
	}

	return true
}

// Step executes a single instruction (or services a pending interrupt while
// halted) and returns the number of T-cycles it took.
//
// The EI delay and the HALT bug are both one-instruction-late effects: IME is
// set at the end of the step after the one that ran EI, and the fetch right
// after a HALT that triggered the bug does not advance pc past the byte it
// read, so that byte is read again by the following step.
func (c *CPU) Step() int {
	if c.halted {
		if c.handleInterrupts() {
			c.halted = false
		}
		return 4
	}

	if c.handleInterrupts() {
		return 20
	}

	enableIME := c.eiPending // EI ran in an earlier step

	opcode := Decode(c)
	width := uint16(1)
	if c.currentOpcode > 0xFF {
		width = 2
	}
	if c.haltBug {
		// the fetch right after HALT does not advance past its first byte
		c.haltBug = false
		width--
	}
	c.pc += width

	cycles := opcode(c)
	c.cycles += uint64(cycles)

	if enableIME && c.eiPending {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	return cycles
}
