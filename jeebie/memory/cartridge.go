package memory

import (
	"errors"
	"fmt"

	"github.com/baremetal-gb/gbcore/jeebie/util"
)

// Construction-time errors surfaced by NewCartridgeWithData. Once a
// cartridge/MMU exists, memory operations never fail -- they saturate,
// return 0xFF, or silently drop, matching hardware.
var (
	// ErrRomTooSmall is returned when the ROM is shorter than the header.
	ErrRomTooSmall = errors.New("memory: rom is smaller than the 0x150-byte header")
	// ErrInvalidChecksum is returned when the header checksum at 0x14D
	// does not match the computed value and checksum validation was not
	// skipped.
	ErrInvalidChecksum = errors.New("memory: header checksum mismatch")
	// ErrUnsupportedCartridge is returned when byte 0x147 names an MBC
	// family this core does not implement.
	ErrUnsupportedCartridge = errors.New("memory: unsupported cartridge type")
	// ErrRequiresColorMode is returned when a CGB-only ROM is loaded with
	// classicOnly requested.
	ErrRequiresColorMode = errors.New("memory: rom requires color mode")
	// ErrWrongLength is returned by ImportRAM when the supplied save data
	// doesn't match the size the MBC expects.
	ErrWrongLength = errors.New("memory: save data has the wrong length")
)

const titleLength = 11

// minHeaderLength is the smallest ROM size that contains a full cartridge
// header (through byte 0x14F).
const minHeaderLength = 0x150

const (
	entryPointAddress       = 0x100
	logoAddress             = 0x104
	titleAddress            = 0x134
	manufacturerCodeAddress = 0x13F
	cgbFlagAddress          = 0x143
	newLicenseCodeAddress   = 0x144
	sgbFlagAddress          = 0x146
	cartridgeTypeAddress    = 0x147
	romSizeAddress          = 0x148
	ramSizeAddress          = 0x149
	destinationCodeAddress  = 0x14A
	oldLicenseCodeAddress   = 0x14B
	versionNumberAddress    = 0x14C
	headerChecksumAddress   = 0x14D
	globalChecksumAddress   = 0x14E
)

// mbcKind identifies which memory bank controller a cartridge header asks for.
type mbcKind uint8

const (
	NoMBCType mbcKind = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// ramBankCountForCode translates the 0x149 RAM size header byte into a
// number of 8KB banks, per the cartridge header table.
func ramBankCountForCode(code uint8) uint8 {
	switch code {
	case 0x00:
		return 0
	case 0x01:
		return 1
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// classifyCartType decodes the 0x147 cartridge type header byte into the
// MBC family it requires along with which optional features (battery
// backed save RAM, an RTC, a rumble motor) it carries.
func classifyCartType(cartType uint8) (kind mbcKind, hasBattery, hasRTC, hasRumble bool) {
	switch cartType {
	case 0x00:
		return NoMBCType, false, false, false
	case 0x08:
		return NoMBCType, false, false, false
	case 0x09:
		return NoMBCType, true, false, false
	case 0x01:
		return MBC1Type, false, false, false
	case 0x02:
		return MBC1Type, false, false, false
	case 0x03:
		return MBC1Type, true, false, false
	case 0x05:
		return MBC2Type, false, false, false
	case 0x06:
		return MBC2Type, true, false, false
	case 0x0F:
		return MBC3Type, true, true, false
	case 0x10:
		return MBC3Type, true, true, false
	case 0x11:
		return MBC3Type, false, false, false
	case 0x12:
		return MBC3Type, false, false, false
	case 0x13:
		return MBC3Type, true, false, false
	case 0x19:
		return MBC5Type, false, false, false
	case 0x1A:
		return MBC5Type, false, false, false
	case 0x1B:
		return MBC5Type, true, false, false
	case 0x1C:
		return MBC5Type, false, false, true
	case 0x1D:
		return MBC5Type, false, false, true
	case 0x1E:
		return MBC5Type, true, false, true
	default:
		return MBCUnknownType, false, false, false
	}
}

// computeHeaderChecksum implements the header checksum formula from the
// cartridge header spec: sum(-rom[i]-1) for i in 0x134..0x14C, mod 256.
func computeHeaderChecksum(data []byte) uint8 {
	var checksum uint8
	for i := titleAddress; i <= versionNumberAddress; i++ {
		checksum = checksum - data[i] - 1
	}
	return checksum
}

type Cartridge struct {
	data           []byte
	title          string
	headerChecksum uint8
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSize        uint8
	ramSize        uint8

	mbcType      mbcKind
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x10000),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData initializes a new Cartridge from a slice of bytes,
// parsing the ROM header to determine the MBC type and its RAM/battery/RTC
// features. skipChecksum bypasses the 0x14D header checksum validation
// (useful for homebrew/test ROMs that don't bother computing it);
// classicOnly rejects ROMs that declare CGB-only support (0x143 == 0xC0).
func NewCartridgeWithData(bytes []byte, skipChecksum, classicOnly bool) (*Cartridge, error) {
	if len(bytes) < minHeaderLength {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrRomTooSmall, len(bytes), minHeaderLength)
	}

	headerChecksum := bytes[headerChecksumAddress]
	if !skipChecksum {
		if computed := computeHeaderChecksum(bytes); computed != headerChecksum {
			return nil, fmt.Errorf("%w: header says 0x%02X, computed 0x%02X", ErrInvalidChecksum, headerChecksum, computed)
		}
	}

	cgbFlag := bytes[cgbFlagAddress]
	if classicOnly && cgbFlag == 0xC0 {
		return nil, ErrRequiresColorMode
	}

	titleBytes := bytes[titleAddress : titleAddress+titleLength]

	cartType := bytes[cartridgeTypeAddress]
	mbcType, hasBattery, hasRTC, hasRumble := classifyCartType(cartType)
	if mbcType == MBCUnknownType {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnsupportedCartridge, cartType)
	}
	ramSize := bytes[ramSizeAddress]

	cart := &Cartridge{
		data:           make([]byte, len(bytes)),
		title:          cleanGameboyTitle(titleBytes),
		headerChecksum: headerChecksum,
		globalChecksum: util.CombineBytes(bytes[globalChecksumAddress+1], bytes[globalChecksumAddress]),
		version:        bytes[versionNumberAddress],
		cartType:       cartType,
		romSize:        bytes[romSizeAddress],
		ramSize:        ramSize,
		mbcType:        mbcType,
		hasBattery:     hasBattery,
		hasRTC:         hasRTC,
		hasRumble:      hasRumble,
		ramBankCount:   ramBankCountForCode(ramSize),
	}

	copy(cart.data, bytes)

	return cart, nil
}

// Title returns the cleaned up game title read from the ROM header.
func (c Cartridge) Title() string {
	return c.title
}

// IsCGB reports whether the ROM header declares Game Boy Color support.
func (c Cartridge) IsCGB() bool {
	if len(c.data) <= cgbFlagAddress {
		return false
	}
	flag := c.data[cgbFlagAddress]
	return flag == 0x80 || flag == 0xC0
}

// ReadByte reads a byte at the specified address. Does not check bounds, so the caller must make sure the
// address is valid for the cartridge.
func (c Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

// WriteByte attempts a write to the specified address. Writing to a cartridge has sense if the cartridge
// has extra RAM or for some special operations, like switching ROM banks.
func (c Cartridge) WriteByte(addr uint16, value uint8) uint8 {
	return c.data[addr]
}
