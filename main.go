package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"nesgo/nes"

	"github.com/faiface/pixel/pixelgl"
)

// Command line flags
var (
	flagDebug   bool
	flagLogging bool
	flagRom     string
	flagScale   float64
	flagNestest bool
)

func main() {
	parseFlags()

	if flagRom == "" {
		fmt.Fprintln(os.Stderr, "usage: nesgo -rom <file.nes> [-scale N] [-d] [-l] [-nestest]")
		os.Exit(1)
	}

	fmt.Println("Starting NES...")
	bus := nes.NewBus()

	data, err := os.ReadFile(flagRom)
	if err != nil {
		log.Fatal(err)
	}

	cart, err := nes.NewCartridge(data)
	if err != nil {
		log.Fatal(err)
	}
	bus.InsertCartridge(cart)

	if flagLogging {
		if err := bus.Cpu.EnableLogging("./logs"); err != nil {
			log.Fatal(err)
		}
	}

	if flagDebug {
		lines := bus.Cpu.Disassemble(0x0000, 0xFFFF)
		fmt.Printf("disassembled %d addresses\n", len(lines))
	}

	fmt.Println("Resetting NES...")
	bus.Reset()

	if flagNestest {
		// nestest.nes expects execution to begin at $C000 rather than the
		// reset vector, since it runs headless without a PPU to satisfy.
		bus.Cpu.Pc = 0xC000
	}

	pixelgl.Run(func() {
		display := nes.NewPixelDisplay(flagScale)
		bus.ConnectDisplay(display)
		bus.Run()
	})
}

func parseFlags() {
	flag.BoolVar(&flagDebug, "d", false, "disassemble memory at startup and print the instruction count")
	flag.BoolVar(&flagLogging, "l", false, "enable CPU instruction logging")
	flag.StringVar(&flagRom, "rom", "", "path to an iNES ROM file")
	flag.Float64Var(&flagScale, "scale", 2, "integer scale factor for the display window")
	flag.BoolVar(&flagNestest, "nestest", false, "start execution at $C000 for the nestest automation ROM")

	flag.Parse()
}
