package nes

import (
	"fmt"
	"time"
)

// Bus is the NES's 16-bit CPU address bus: it owns internal RAM and
// wires together the CPU, PPU, cartridge and controllers that all
// share it.
type Bus struct {
	Cpu  *Cpu6502
	Ppu  *Ppu
	Cart *Cartridge

	ram [2048]byte

	Controllers     [2]*Controller
	controllerLatch [2]byte

	ClockCount uint64
}

const (
	ramMinAddr uint16 = 0x0000
	ramMaxAddr uint16 = 0x1FFF
	ramMirror  uint16 = 0x07FF

	ppuMinAddr uint16 = 0x2000
	ppuMaxAddr uint16 = 0x3FFF
	ppuMirror  uint16 = 0x0007

	apuIoMinAddr uint16 = 0x4000
	apuIoMaxAddr uint16 = 0x4013

	apuStatusAddr uint16 = 0x4015
	apuFrameAddr  uint16 = 0x4017

	// Controller port: only $4016 is reachable, since $4017 is claimed
	// first by the APU/IO rule above it in priority order.
	controllerAddr uint16 = 0x4016

	lowExpansionMinAddr uint16 = 0x4018
	lowExpansionMaxAddr uint16 = 0x401F

	// Frames per second the free-running Run loop paces itself at.
	fps float64 = 60.0
)

// isApuIoAddr reports whether addr falls in the (non-contiguous)
// APU/IO register range that the bus always discards writes to and
// reads as 0: $4000-$4013, $4015, $4017. $4014 (OAMDMA) and $4016 are
// deliberately excluded.
func isApuIoAddr(addr uint16) bool {
	return (addr >= apuIoMinAddr && addr <= apuIoMaxAddr) || addr == apuStatusAddr || addr == apuFrameAddr
}

// Display is the abstraction the PPU renders through. The concrete
// pixelgl window implementation is PixelDisplay in display.go; the bus,
// CPU and PPU only see this interface.
type Display interface {
	DrawPixel(x, y int, c [3]byte)
	UpdateScreen()
}

func NewBus() *Bus {
	cpu := NewCpu6502()
	bus := &Bus{
		Cpu: cpu,
		Ppu: NewPpu(),
		Controllers: [2]*Controller{
			NewController(),
			NewController(),
		},
	}
	cpu.ConnectBus(bus)

	return bus
}

// InsertCartridge loads a cartridge onto both the CPU-facing and
// PPU-facing halves of the bus.
func (b *Bus) InsertCartridge(cart *Cartridge) {
	b.Cart = cart
	b.Ppu.ConnectCartridge(cart)
}

// ConnectDisplay wires the PPU's pixel output and frame-complete signal to
// d. Optional: a Bus with no display connected still runs and clocks the
// PPU normally, it just never calls DrawPixel/UpdateScreen.
func (b *Bus) ConnectDisplay(d Display) {
	b.Ppu.ConnectDisplay(d)
}

// Reset resets the CPU and PPU and zeroes the clock counter.
func (b *Bus) Reset() {
	b.Cpu.Reset()
	b.Ppu.Reset()
	b.ClockCount = 0
}

// Run drives the machine at a fixed frame rate, rendering through the
// Display connected with ConnectDisplay, until the process is killed. Intended for the graphical
// front end; test and monitor code drive Clock directly instead.
func (b *Bus) Run() {
	interval := time.Duration(float64(time.Second) / fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for !b.Ppu.frameComplete {
			b.Clock()
		}
		b.Ppu.frameComplete = false

		<-ticker.C
	}
}

// Clock advances the machine by one PPU cycle. The CPU runs three
// times slower than the PPU, so it only clocks on every third call.
// If the PPU raised its NMI edge this cycle, the bus clears it and
// services the interrupt.
func (b *Bus) Clock() {
	b.Ppu.Clock()

	if b.ClockCount%3 == 0 {
		b.Cpu.Clock()
	}

	if b.Ppu.nmiRequested {
		b.Ppu.nmiRequested = false
		b.Cpu.NMI()
	}

	b.ClockCount++
}

// CpuRead dispatches a CPU-bus read, advancing any device side
// effects (controller shift, PPUSTATUS latch clear, PPUDATA buffer).
func (b *Bus) CpuRead(addr uint16) byte {
	if b.Cart != nil {
		if data, ok := b.Cart.CpuRead(addr); ok {
			return data
		}
	}

	switch {
	case addr >= ramMinAddr && addr <= ramMaxAddr:
		return b.ram[addr&ramMirror]
	case addr >= ppuMinAddr && addr <= ppuMaxAddr:
		return b.Ppu.cpuRead(addr & ppuMirror)
	case isApuIoAddr(addr):
		return 0
	case addr == controllerAddr:
		data := (b.controllerLatch[0] & 0x80) >> 7
		b.controllerLatch[0] <<= 1
		return data
	default:
		return 0
	}
}

// CpuWrite dispatches a CPU-bus write.
func (b *Bus) CpuWrite(addr uint16, data byte) {
	if b.Cart != nil {
		if b.Cart.CpuWrite(addr, data) {
			return
		}
	}

	switch {
	case addr >= ramMinAddr && addr <= ramMaxAddr:
		b.ram[addr&ramMirror] = data
	case addr >= ppuMinAddr && addr <= ppuMaxAddr:
		b.Ppu.cpuWrite(addr&ppuMirror, data)
	case isApuIoAddr(addr):
		// Discarded: APU registers are a non-goal.
	case addr == controllerAddr:
		// Any write latches both controllers' current button byte;
		// only port 0's latch is ever read back, since $4017 never
		// reaches this branch.
		if b.Controllers[0] != nil {
			b.controllerLatch[0] = b.Controllers[0].GetState()
		}
		if b.Controllers[1] != nil {
			b.controllerLatch[1] = b.Controllers[1].GetState()
		}
	default:
		// $4014 (OAMDMA) and $4018-$401F: unmapped, no-op.
	}
}

// CpuDebugRead performs the same decode as CpuRead but never mutates
// device state. Used by the disassembler and monitor so inspection
// never perturbs the machine being inspected.
func (b *Bus) CpuDebugRead(addr uint16) byte {
	if b.Cart != nil {
		if data, ok := b.Cart.CpuRead(addr); ok {
			return data
		}
	}

	switch {
	case addr >= ramMinAddr && addr <= ramMaxAddr:
		return b.ram[addr&ramMirror]
	case addr >= ppuMinAddr && addr <= ppuMaxAddr:
		return b.Ppu.debugRead(addr & ppuMirror)
	case addr == controllerAddr:
		return (b.controllerLatch[0] & 0x80) >> 7
	default:
		return 0
	}
}

// LoadBytes copies a block of bytes directly into the 2 KiB internal
// RAM, for test harnesses that want to hand-assemble a tiny program
// without a full cartridge. Returns a RangeExceededError if the block
// doesn't fit.
func (b *Bus) LoadBytes(data []byte) error {
	if len(data) > len(b.ram) {
		return &RangeExceededError{Region: "2 KiB internal RAM", Size: len(data)}
	}
	copy(b.ram[:], data)
	return nil
}

func (b *Bus) String() string {
	return fmt.Sprintf("Bus{clock=%d}", b.ClockCount)
}
