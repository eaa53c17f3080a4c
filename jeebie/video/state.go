package video

import (
	"encoding/binary"
	"io"
)

// WriteState serializes the PPU's fixed scalar fields, its 16 KiB of VRAM,
// the 160-byte OAM table and the CGB BG/OBJ palette RAM. VRAM and OAM
// physically live in the MMU's memory map, so this delegates to it; the PPU
// only owns the rendering-stage counters below.
func (g *GPU) WriteState(w io.Writer) error {
	fields := struct {
		Mode                 int32
		Line                 int32
		Cycles               int32
		ModeCounterAux       int32
		VBlankLine           int32
		PixelCounter         int32
		TileCycleCounter     int32
		WindowLine           int32
		IsScanLineTransfered uint8
	}{
		Mode:                 int32(g.mode),
		Line:                 int32(g.line),
		Cycles:               int32(g.cycles),
		ModeCounterAux:       int32(g.modeCounterAux),
		VBlankLine:           int32(g.vBlankLine),
		PixelCounter:         int32(g.pixelCounter),
		TileCycleCounter:     int32(g.tileCycleCounter),
		WindowLine:           int32(g.windowLine),
		IsScanLineTransfered: boolToByte(g.isScanLineTransfered),
	}
	if err := binary.Write(w, binary.LittleEndian, fields); err != nil {
		return err
	}

	if _, err := w.Write(g.memory.VRAMBytes()); err != nil {
		return err
	}
	if _, err := w.Write(g.memory.OAMBytes()); err != nil {
		return err
	}

	bg, obj := g.memory.PaletteBytes()
	if _, err := w.Write(bg); err != nil {
		return err
	}
	_, err := w.Write(obj)
	return err
}

// ReadState restores a GPU previously written by WriteState.
func (g *GPU) ReadState(r io.Reader) error {
	var fields struct {
		Mode                 int32
		Line                 int32
		Cycles               int32
		ModeCounterAux       int32
		VBlankLine           int32
		PixelCounter         int32
		TileCycleCounter     int32
		WindowLine           int32
		IsScanLineTransfered uint8
	}
	if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
		return err
	}
	g.mode = GpuMode(fields.Mode)
	g.line = int(fields.Line)
	g.cycles = int(fields.Cycles)
	g.modeCounterAux = int(fields.ModeCounterAux)
	g.vBlankLine = int(fields.VBlankLine)
	g.pixelCounter = int(fields.PixelCounter)
	g.tileCycleCounter = int(fields.TileCycleCounter)
	g.windowLine = int(fields.WindowLine)
	g.isScanLineTransfered = fields.IsScanLineTransfered != 0

	vram := make([]byte, 0x4000)
	if _, err := io.ReadFull(r, vram); err != nil {
		return err
	}
	if err := g.memory.SetVRAMBytes(vram); err != nil {
		return err
	}

	oam := make([]byte, 160)
	if _, err := io.ReadFull(r, oam); err != nil {
		return err
	}
	if err := g.memory.SetOAMBytes(oam); err != nil {
		return err
	}

	bg := make([]byte, 64)
	obj := make([]byte, 64)
	if _, err := io.ReadFull(r, bg); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, obj); err != nil {
		return err
	}
	return g.memory.SetPaletteBytes(bg, obj)
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
