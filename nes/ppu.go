package nes

import (
	"image"
	"image/color"
)

// Ppu is the 2C02-style picture processing unit: a dot-paced
// background/sprite fetch pipeline driving a 256x240 framebuffer, with
// an 8-register CPU-facing interface.
//
// Much of the pipeline's shape (fetch phases, loopy scroll increments,
// shift-register composition) follows the well-documented olc2C02
// design that n-ulricksen's own disassembler already credits.
type Ppu struct {
	Cart    *Cartridge
	display Display

	Ctrl   PpuCtrl
	Mask   PpuMask
	Status PpuStatus

	oamAddr byte
	oam     objectAttributeMemory

	nameTable    [2][1024]byte
	paletteTable [32]byte

	// chrRAM backs the pattern tables when the cartridge declares zero
	// CHR-ROM banks, as two 4 KiB planes owned directly by the PPU.
	chrRAM [2][4096]byte

	vramAddr LoopyReg // v
	tempAddr LoopyReg // t
	fineX    byte     // 3-bit fine X scroll
	addrLatch bool    // w: write toggle, shared by PPUSCROLL/PPUADDR

	dataBuffer byte // 1-byte delayed-read buffer for PPUDATA

	bgNextTileID     byte
	bgNextTileAttrib byte
	bgNextTileLsb    byte
	bgNextTileMsb    byte

	bgShifterPatternLo uint16
	bgShifterPatternHi uint16
	bgShifterAttribLo  uint16
	bgShifterAttribHi  uint16

	spriteScanline        [8]oamSprite
	spriteCount           int
	spriteShifterLo       [8]byte
	spriteShifterHi       [8]byte
	spriteZeroHitPossible bool
	spriteZeroBeingRend   bool

	scanline      int
	cycle         int
	frameComplete bool
	nmiRequested  bool

	frame [240][256][3]byte
}

const (
	patternTblAddr    uint16 = 0x0000
	patternTblAddrEnd uint16 = 0x1FFF
	patternTblSize    uint16 = 0x1000

	nameTblAddr    uint16 = 0x2000
	nameTblAddrEnd uint16 = 0x3EFF

	paletteAddr    uint16 = 0x3F00
	paletteAddrEnd uint16 = 0x3FFF
)

func NewPpu() *Ppu {
	p := &Ppu{
		scanline:      -1,
		cycle:         0,
		frameComplete: true,
	}
	p.oam = newOAM(64)
	return p
}

func (p *Ppu) ConnectCartridge(c *Cartridge) { p.Cart = c }
func (p *Ppu) ConnectDisplay(d Display)      { p.display = d }

// Reset clears dot/scanline position and the one-shot frame flags.
// Nametable/palette/OAM contents are left as-is, matching hardware:
// they are not guaranteed cleared by a reset.
func (p *Ppu) Reset() {
	p.scanline = -1
	p.cycle = 0
	p.frameComplete = false
	p.nmiRequested = false
	p.addrLatch = false
	p.fineX = 0
}

// Clock advances the PPU by one dot: 341 dots per scanline, 262
// scanlines per frame (-1 is the pre-render line).
func (p *Ppu) Clock() {
	if p.scanline >= -1 && p.scanline < 240 {
		if p.scanline == -1 && p.cycle == 1 {
			p.Status.SetVBlank(false)
			p.Status.SetSprite0Hit(false)
			p.Status.SetSpriteOverflow(false)
			p.spriteShifterLo = [8]byte{}
			p.spriteShifterHi = [8]byte{}
		}

		if (p.cycle >= 2 && p.cycle < 258) || (p.cycle >= 321 && p.cycle < 338) {
			p.updateShifters()

			switch (p.cycle - 1) % 8 {
			case 0:
				p.loadBackgroundShifters()
				p.bgNextTileID = p.ppuRead(nameTblAddr | (p.vramAddr.Get() & 0x0FFF))
			case 2:
				p.fetchNextTileAttrib()
			case 4:
				p.fetchNextTileLsb()
			case 6:
				p.fetchNextTileMsb()
			case 7:
				p.incrementScrollX()
			}
		}

		if p.cycle == 256 {
			p.incrementScrollY()
		}
		if p.cycle == 257 {
			p.loadBackgroundShifters()
			p.transferAddressX()
		}
		if p.cycle == 338 || p.cycle == 340 {
			p.bgNextTileID = p.ppuRead(nameTblAddr | (p.vramAddr.Get() & 0x0FFF))
		}
		if p.scanline == -1 && p.cycle >= 280 && p.cycle < 305 {
			p.transferAddressY()
		}

		if p.cycle == 257 && p.scanline >= 0 {
			p.evaluateSprites()
		}
		if p.cycle >= 258 && p.cycle < 318 {
			p.oamAddr = 0
		}
		if p.cycle == 340 {
			p.fetchSpritePatterns()
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.Status.SetVBlank(true)
		if p.Ctrl.GenerateNMI() {
			p.nmiRequested = true
		}
	}

	if p.cycle >= 1 && p.cycle <= 256 && p.scanline >= 0 && p.scanline < 240 {
		p.renderPixel()
	}

	p.cycle++
	if p.cycle >= 341 {
		p.cycle = 0
		p.scanline++
		if p.scanline >= 261 {
			p.scanline = -1
			p.frameComplete = true
			if p.display != nil {
				p.display.UpdateScreen()
			}
		}
	}
}

////////////////////////////////////////////////////////////////
// Loopy scroll-register bookkeeping

func (p *Ppu) incrementScrollX() {
	if !p.Mask.RenderingEnabled() {
		return
	}
	if p.vramAddr.CoarseX() == 31 {
		p.vramAddr.SetCoarseX(0)
		p.vramAddr.ToggleNametableX()
	} else {
		p.vramAddr.SetCoarseX(p.vramAddr.CoarseX() + 1)
	}
}

func (p *Ppu) incrementScrollY() {
	if !p.Mask.RenderingEnabled() {
		return
	}
	if p.vramAddr.FineY() < 7 {
		p.vramAddr.SetFineY(p.vramAddr.FineY() + 1)
		return
	}
	p.vramAddr.SetFineY(0)
	switch p.vramAddr.CoarseY() {
	case 29:
		p.vramAddr.SetCoarseY(0)
		p.vramAddr.ToggleNametableY()
	case 31:
		p.vramAddr.SetCoarseY(0)
	default:
		p.vramAddr.SetCoarseY(p.vramAddr.CoarseY() + 1)
	}
}

func (p *Ppu) transferAddressX() {
	if !p.Mask.RenderingEnabled() {
		return
	}
	p.vramAddr.SetNametableX(p.tempAddr.NametableX())
	p.vramAddr.SetCoarseX(p.tempAddr.CoarseX())
}

func (p *Ppu) transferAddressY() {
	if !p.Mask.RenderingEnabled() {
		return
	}
	p.vramAddr.SetNametableY(p.tempAddr.NametableY())
	p.vramAddr.SetCoarseY(p.tempAddr.CoarseY())
	p.vramAddr.SetFineY(p.tempAddr.FineY())
}

////////////////////////////////////////////////////////////////
// Background fetch

func (p *Ppu) fetchNextTileAttrib() {
	attribAddr := 0x23C0 | (uint16(p.vramAddr.NametableY()) << 11) |
		(uint16(p.vramAddr.NametableX()) << 10) |
		(uint16(p.vramAddr.CoarseY()>>2) << 3) |
		uint16(p.vramAddr.CoarseX()>>2)

	attrib := p.ppuRead(attribAddr)
	if p.vramAddr.CoarseY()&0x02 != 0 {
		attrib >>= 4
	}
	if p.vramAddr.CoarseX()&0x02 != 0 {
		attrib >>= 2
	}
	p.bgNextTileAttrib = attrib & 0x03
}

func (p *Ppu) fetchNextTileLsb() {
	addr := p.Ctrl.BgPatternTable()<<12 + uint16(p.bgNextTileID)<<4 + uint16(p.vramAddr.FineY())
	p.bgNextTileLsb = p.ppuRead(addr)
}

func (p *Ppu) fetchNextTileMsb() {
	addr := p.Ctrl.BgPatternTable()<<12 + uint16(p.bgNextTileID)<<4 + uint16(p.vramAddr.FineY()) + 8
	p.bgNextTileMsb = p.ppuRead(addr)
}

func (p *Ppu) loadBackgroundShifters() {
	p.bgShifterPatternLo = (p.bgShifterPatternLo & 0xFF00) | uint16(p.bgNextTileLsb)
	p.bgShifterPatternHi = (p.bgShifterPatternHi & 0xFF00) | uint16(p.bgNextTileMsb)

	var lo, hi uint16
	if p.bgNextTileAttrib&0b01 != 0 {
		lo = 0xFF
	}
	if p.bgNextTileAttrib&0b10 != 0 {
		hi = 0xFF
	}
	p.bgShifterAttribLo = (p.bgShifterAttribLo & 0xFF00) | lo
	p.bgShifterAttribHi = (p.bgShifterAttribHi & 0xFF00) | hi
}

func (p *Ppu) updateShifters() {
	if p.Mask.ShowBackground() {
		p.bgShifterPatternLo <<= 1
		p.bgShifterPatternHi <<= 1
		p.bgShifterAttribLo <<= 1
		p.bgShifterAttribHi <<= 1
	}

	if p.Mask.ShowSprites() && p.cycle >= 1 && p.cycle < 258 {
		for i := 0; i < p.spriteCount; i++ {
			if p.spriteScanline[i].x > 0 {
				p.spriteScanline[i].x--
				continue
			}
			p.spriteShifterLo[i] <<= 1
			p.spriteShifterHi[i] <<= 1
		}
	}
}

////////////////////////////////////////////////////////////////
// Sprites

// evaluateSprites scans primary OAM for up to 8 sprites visible on
// the next scanline, flagging overflow past that and tracking whether
// sprite 0 is among them for sprite-0-hit detection.
func (p *Ppu) evaluateSprites() {
	p.spriteCount = 0
	p.spriteZeroHitPossible = false

	spriteHeight := 8
	if p.Ctrl.SpriteSize() != 0 {
		spriteHeight = 16
	}

	for i := 0; i < len(p.oam) && p.spriteCount < 9; i++ {
		diff := int(p.scanline) - int(p.oam[i].y)
		if diff < 0 || diff >= spriteHeight {
			continue
		}
		if p.spriteCount < 8 {
			if i == 0 {
				p.spriteZeroHitPossible = true
			}
			copyOamEntry(&p.spriteScanline[p.spriteCount], p.oam[i])
		}
		p.spriteCount++
	}

	if p.spriteCount > 8 {
		p.Status.SetSpriteOverflow(true)
		if p.spriteCount > 8 {
			p.spriteCount = 8
		}
	}
}

func (p *Ppu) fetchSpritePatterns() {
	spriteHeight := byte(8)
	if p.Ctrl.SpriteSize() != 0 {
		spriteHeight = 16
	}

	for i := 0; i < p.spriteCount; i++ {
		sprite := p.spriteScanline[i]

		var patternTable, tileID, row byte
		if spriteHeight == 8 {
			patternTable = byte(p.Ctrl.SpritePatternTable())
			tileID = sprite.id
			row = byte(p.scanline) - sprite.y
			if sprite.isFlippedVertical() {
				row = 7 - row
			}
		} else {
			patternTable = sprite.id & 0x01
			baseTile := sprite.id & 0xFE
			rowInSprite := byte(p.scanline) - sprite.y
			if sprite.isFlippedVertical() {
				rowInSprite = 15 - rowInSprite
			}
			if rowInSprite < 8 {
				tileID = baseTile
				row = rowInSprite
			} else {
				tileID = baseTile + 1
				row = rowInSprite - 8
			}
		}

		addrLo := uint16(patternTable)<<12 | uint16(tileID)<<4 | uint16(row)
		lo := p.ppuRead(addrLo)
		hi := p.ppuRead(addrLo + 8)

		if sprite.isFlippedHorizontal() {
			lo = flipByte(lo)
			hi = flipByte(hi)
		}

		p.spriteShifterLo[i] = lo
		p.spriteShifterHi[i] = hi
	}
}

////////////////////////////////////////////////////////////////
// Pixel composition

func (p *Ppu) renderPixel() {
	bgPixel, bgPalette := p.backgroundPixel()
	fgPixel, fgPalette, fgPriority, isSpriteZero := p.spritePixel()

	pixel, palette := bgPixel, bgPalette
	switch {
	case bgPixel == 0 && fgPixel != 0:
		pixel, palette = fgPixel, fgPalette
	case bgPixel != 0 && fgPixel != 0:
		if fgPriority {
			pixel, palette = fgPixel, fgPalette
		}
		if isSpriteZero && p.spriteZeroHitPossible && p.Mask.ShowBackground() && p.Mask.ShowSprites() {
			p.Status.SetSprite0Hit(true)
		}
	}

	x := p.cycle - 1
	y := p.scanline
	c := p.colorFromPalette(palette, pixel)
	p.frame[y][x] = c
	if p.display != nil {
		p.display.DrawPixel(x, y, c)
	}
}

func (p *Ppu) backgroundPixel() (pixel, palette byte) {
	if !p.Mask.ShowBackground() {
		return 0, 0
	}
	bitMux := uint16(0x8000) >> p.fineX

	p0 := byte(0)
	if p.bgShifterPatternLo&bitMux != 0 {
		p0 = 1
	}
	p1 := byte(0)
	if p.bgShifterPatternHi&bitMux != 0 {
		p1 = 1
	}
	pixel = p0 | (p1 << 1)

	a0 := byte(0)
	if p.bgShifterAttribLo&bitMux != 0 {
		a0 = 1
	}
	a1 := byte(0)
	if p.bgShifterAttribHi&bitMux != 0 {
		a1 = 1
	}
	palette = a0 | (a1 << 1)

	return pixel, palette
}

func (p *Ppu) spritePixel() (pixel, palette byte, priority bool, isSpriteZero bool) {
	if !p.Mask.ShowSprites() {
		return 0, 0, false, false
	}

	for i := 0; i < p.spriteCount; i++ {
		if p.spriteScanline[i].x != 0 {
			continue
		}
		p0 := byte(0)
		if p.spriteShifterLo[i]&0x80 != 0 {
			p0 = 1
		}
		p1 := byte(0)
		if p.spriteShifterHi[i]&0x80 != 0 {
			p1 = 1
		}
		spritePixel := p0 | (p1 << 1)
		if spritePixel == 0 {
			continue
		}

		return spritePixel, (p.spriteScanline[i].attribute & 0x03) + 4, p.spriteScanline[i].attribute&0x20 == 0, i == 0
	}

	return 0, 0, false, false
}

////////////////////////////////////////////////////////////////
// CPU-facing register interface ($2000-$2007, mirrored every 8 bytes)

func (p *Ppu) cpuRead(addr uint16) byte {
	switch addr {
	case 0x0002: // PPUSTATUS
		// Bits 0-4 are unimplemented on real hardware and read back as
		// whatever was left over in the PPUDATA read buffer.
		data := (p.Status.Get() & 0xE0) | (p.dataBuffer & 0x1F)
		p.Status.SetVBlank(false)
		p.addrLatch = false
		return data
	case 0x0004: // OAMDATA
		return p.oam.read(p.oamAddr)
	case 0x0007: // PPUDATA
		data := p.dataBuffer
		p.dataBuffer = p.ppuRead(p.vramAddr.Get())
		if p.vramAddr.Get() >= paletteAddr {
			data = p.dataBuffer
		}
		p.vramAddr.Set(p.vramAddr.Get() + p.Ctrl.VramIncrement())
		return data
	default: // PPUCTRL, PPUMASK, OAMADDR, PPUSCROLL, PPUADDR: write-only
		return 0
	}
}

func (p *Ppu) cpuWrite(addr uint16, data byte) {
	switch addr {
	case 0x0000: // PPUCTRL
		p.Ctrl.Set(data)
		p.tempAddr.SetNametableX(p.Ctrl.NametableX())
		p.tempAddr.SetNametableY(p.Ctrl.NametableY())
	case 0x0001: // PPUMASK
		p.Mask.Set(data)
	case 0x0003: // OAMADDR
		p.oamAddr = data
	case 0x0004: // OAMDATA
		p.oam.write(p.oamAddr, data)
		p.oamAddr++
	case 0x0005: // PPUSCROLL
		if !p.addrLatch {
			p.fineX = data & 0x07
			p.tempAddr.SetCoarseX(data >> 3)
		} else {
			p.tempAddr.SetFineY(data & 0x07)
			p.tempAddr.SetCoarseY(data >> 3)
		}
		p.addrLatch = !p.addrLatch
	case 0x0006: // PPUADDR
		if !p.addrLatch {
			p.tempAddr.Set((p.tempAddr.Get() & 0x00FF) | (uint16(data&0x3F) << 8))
		} else {
			p.tempAddr.Set((p.tempAddr.Get() & 0xFF00) | uint16(data))
			p.vramAddr.Set(p.tempAddr.Get())
		}
		p.addrLatch = !p.addrLatch
	case 0x0007: // PPUDATA
		p.ppuWrite(p.vramAddr.Get(), data)
		p.vramAddr.Set(p.vramAddr.Get() + p.Ctrl.VramIncrement())
	}
}

// debugRead mirrors cpuRead's decode without the read side effects
// (vblank clear, write-toggle reset, PPUDATA buffering/increment).
func (p *Ppu) debugRead(addr uint16) byte {
	switch addr {
	case 0x0002:
		return p.Status.Get()
	case 0x0004:
		return p.oam.read(p.oamAddr)
	case 0x0007:
		return p.dataBuffer
	default:
		return 0
	}
}

////////////////////////////////////////////////////////////////
// PPU-bus interface (cartridge CHR space, nametables, palette RAM)

func (p *Ppu) ppuRead(addr uint16) byte {
	addr &= paletteAddrEnd

	switch {
	case addr >= patternTblAddr && addr <= patternTblAddrEnd:
		if p.Cart != nil && p.Cart.CHRBanks != 0 {
			if data, ok := p.Cart.PpuRead(addr); ok {
				return data
			}
			return 0
		}
		plane := addr / patternTblSize
		return p.chrRAM[plane][addr%patternTblSize]
	case addr >= nameTblAddr && addr <= nameTblAddrEnd:
		return p.nameTable[p.nametableIndex(addr)][addr&0x03FF]
	case addr >= paletteAddr && addr <= paletteAddrEnd:
		return p.paletteTable[p.paletteIndex(addr)]
	default:
		return 0
	}
}

func (p *Ppu) ppuWrite(addr uint16, data byte) {
	addr &= paletteAddrEnd

	switch {
	case addr >= patternTblAddr && addr <= patternTblAddrEnd:
		if p.Cart != nil && p.Cart.CHRBanks != 0 {
			p.Cart.PpuWrite(addr, data)
			return
		}
		plane := addr / patternTblSize
		p.chrRAM[plane][addr%patternTblSize] = data
	case addr >= nameTblAddr && addr <= nameTblAddrEnd:
		p.nameTable[p.nametableIndex(addr)][addr&0x03FF] = data
	case addr >= paletteAddr && addr <= paletteAddrEnd:
		p.paletteTable[p.paletteIndex(addr)] = data
	}
}

// nametableIndex maps a $2000-$2FFF address onto one of the PPU's two
// physical 1 KiB nametable banks, per the cartridge's mirroring mode.
func (p *Ppu) nametableIndex(addr uint16) uint16 {
	table := (addr & 0x0FFF) / 0x0400 // 0..3 logical nametable

	mirroring := MirrorVertical
	if p.Cart != nil {
		mirroring = p.Cart.Mirroring
	}

	switch mirroring {
	case MirrorVertical:
		return table % 2
	case MirrorHorizontal:
		return table / 2
	default: // four-screen: fall back to vertical, the common approximation
		return table % 2
	}
}

func (p *Ppu) paletteIndex(addr uint16) uint16 {
	idx := addr & 0x001F
	if idx == 0x10 || idx == 0x14 || idx == 0x18 || idx == 0x1C {
		idx -= 0x10
	}
	return idx
}

func (p *Ppu) colorFromPalette(palette, pixel byte) [3]byte {
	idx := p.ppuRead(paletteAddr + uint16(palette)<<2 + uint16(pixel))
	mask := byte(0x3F)
	if p.Mask.Greyscale() {
		mask = 0x30
	}
	return nesPalette[idx&mask]
}

////////////////////////////////////////////////////////////////
// Debug accessors

// GetPatternTable decodes pattern table i (0 or 1) into a 128x128 RGBA
// tile sheet using the given palette, for debug tools that want to
// visualize CHR data without driving a full frame.
func (p *Ppu) GetPatternTable(i int, palette byte) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, 128, 128))

	for tileY := 0; tileY < 16; tileY++ {
		for tileX := 0; tileX < 16; tileX++ {
			memOffset := uint16(tileY*256 + tileX*16)

			for row := 0; row < 8; row++ {
				tileLo := p.ppuRead(uint16(i)*patternTblSize + memOffset + uint16(row))
				tileHi := p.ppuRead(uint16(i)*patternTblSize + memOffset + uint16(row) + 8)

				for col := 0; col < 8; col++ {
					pixel := (tileLo & 0x01) + ((tileHi & 0x01) << 1)
					tileLo >>= 1
					tileHi >>= 1

					x := tileX*8 + (7 - col)
					y := tileY*8 + row

					c := p.colorFromPalette(palette, pixel)
					rgba.Set(x, y, rgbaColor(c))
				}
			}
		}
	}

	return rgba
}

func rgbaColor(c [3]byte) color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xFF}
}
