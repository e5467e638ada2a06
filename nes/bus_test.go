package nes

import "testing"

func TestBus_RamMirroring(t *testing.T) {
	bus := NewBus()

	bus.CpuWrite(0x0000, 0x42)

	for _, mirror := range []uint16{0x0800, 0x1000, 0x1800} {
		if got := bus.CpuRead(mirror); got != 0x42 {
			t.Errorf("CpuRead(%#04x) = %#02x, want 0x42 (mirrors 0x0000)", mirror, got)
		}
	}
}

func TestBus_PpuRegisterMirroring(t *testing.T) {
	bus := NewBus()
	bus.CpuWrite(0x2000, 0x80) // PPUCTRL: set NMI-generate bit

	for _, mirror := range []uint16{0x2008, 0x2010, 0x3FF8} {
		if bus.Ppu.Ctrl.Get() != 0x80 {
			t.Fatalf("PPUCTRL not set before checking mirror %#04x", mirror)
		}
		bus.CpuWrite(mirror, 0x00)
		if bus.Ppu.Ctrl.Get() != 0x00 {
			t.Errorf("write to %#04x did not reach PPUCTRL through the $2000-$3FFF mirror", mirror)
		}
		bus.CpuWrite(0x2000, 0x80)
	}
}

func TestBus_ApuIoRegistersReadZeroAndDiscardWrites(t *testing.T) {
	bus := NewBus()

	for _, addr := range []uint16{0x4000, 0x4005, 0x4013, 0x4015, 0x4017} {
		bus.CpuWrite(addr, 0xFF)
		if got := bus.CpuRead(addr); got != 0 {
			t.Errorf("CpuRead(%#04x) = %#02x, want 0 (APU/IO register is a non-goal)", addr, got)
		}
	}
}

func TestBus_ControllerShiftsOutMSBFirst(t *testing.T) {
	bus := NewBus()
	bus.Controllers[0].SetButton("right", true) // bit 0
	bus.Controllers[0].SetButton("a", true)      // bit 7

	bus.CpuWrite(0x4016, 0x01) // latch

	want := []byte{1, 0, 0, 0, 0, 0, 0, 1}
	for i, w := range want {
		if got := bus.CpuRead(0x4016); got != w {
			t.Errorf("bit %d read from $4016 = %d, want %d", i, got, w)
		}
	}
}

func TestBus_LoadBytesRejectsOversizedBlock(t *testing.T) {
	bus := NewBus()
	oversized := make([]byte, 2049)

	if err := bus.LoadBytes(oversized); err == nil {
		t.Error("LoadBytes should reject a block larger than 2 KiB internal RAM")
	}
}

func TestBus_ClockServicesPpuNMI(t *testing.T) {
	bus := NewBus()
	bus.CpuWrite(nmiVectAddr, 0x00)
	bus.CpuWrite(nmiVectAddr+1, 0x90)
	bus.Cpu.Reset()
	bus.Cpu.setFlag(StatusFlagI, false)

	bus.Ppu.nmiRequested = true
	bus.Clock()

	if bus.Ppu.nmiRequested {
		t.Error("Bus.Clock should clear the PPU's NMI request once serviced")
	}
}
