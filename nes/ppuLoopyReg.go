package nes

// Loopy registers are the PPU's internal 15-bit VRAM/scroll addresses
// (named after Loopy, who documented them on nesdev). Field layout:
//
//	yyy NN YYYYY XXXXX
//	||| || ||||| +++++-- coarse X scroll
//	||| || +++++-------- coarse Y scroll
//	||| ++-------------- nametable select (X, Y)
//	+++----------------- fine Y scroll
type LoopyReg struct{ Reg16 }

var (
	loopyCoarseX    = BitField{Pos: 0, Width: 5}
	loopyCoarseY    = BitField{Pos: 5, Width: 5}
	loopyNametableX = BitField{Pos: 10, Width: 1}
	loopyNametableY = BitField{Pos: 11, Width: 1}
	loopyFineY      = BitField{Pos: 12, Width: 3}
)

func (r *LoopyReg) CoarseX() byte     { return byte(r.GetBits(loopyCoarseX)) }
func (r *LoopyReg) SetCoarseX(v byte) { r.StoreBits(uint16(v), loopyCoarseX) }

func (r *LoopyReg) CoarseY() byte     { return byte(r.GetBits(loopyCoarseY)) }
func (r *LoopyReg) SetCoarseY(v byte) { r.StoreBits(uint16(v), loopyCoarseY) }

func (r *LoopyReg) NametableX() byte     { return byte(r.GetBits(loopyNametableX)) }
func (r *LoopyReg) SetNametableX(v byte) { r.StoreBits(uint16(v), loopyNametableX) }
func (r *LoopyReg) ToggleNametableX()    { r.StoreBits(uint16(1-r.NametableX()), loopyNametableX) }

func (r *LoopyReg) NametableY() byte     { return byte(r.GetBits(loopyNametableY)) }
func (r *LoopyReg) SetNametableY(v byte) { r.StoreBits(uint16(v), loopyNametableY) }
func (r *LoopyReg) ToggleNametableY()    { r.StoreBits(uint16(1-r.NametableY()), loopyNametableY) }

func (r *LoopyReg) FineY() byte     { return byte(r.GetBits(loopyFineY)) }
func (r *LoopyReg) SetFineY(v byte) { r.StoreBits(uint16(v), loopyFineY) }

// Nametable returns the combined 2-bit nametable select: Y in bit 1,
// X in bit 0.
func (r *LoopyReg) Nametable() byte {
	return r.NametableX() | r.NametableY()<<1
}
