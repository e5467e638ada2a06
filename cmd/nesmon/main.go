// Command nesmon is a text monitor for driving a nes.Bus from a terminal,
// without the pixelgl display. It loads a cartridge, then accepts commands
// on stdin to single-step the CPU, inspect registers and memory, disassemble
// code, and toggle controller buttons.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/cmd"
	"github.com/beevik/prefixtree/v2"

	"nesgo/nes"
)

var cmds = cmd.NewTree("nesmon", []cmd.Command{
	{
		Name:     "help",
		Shortcut: "?",
		Data:     (*monitor).cmdHelp,
	},
	{
		Name:        "step",
		Brief:       "Step the CPU",
		Description: "Clock the CPU forward N instructions (default 1).",
		HelpText:    "step [N]",
		Data:        (*monitor).cmdStep,
	},
	{
		Name:        "run",
		Brief:       "Run the machine freely",
		Description: "Run the machine freely. Press ctrl-C to interrupt.",
		Data:        (*monitor).cmdRun,
	},
	{
		Name:  "reset",
		Brief: "Reset the CPU and PPU",
		Data:  (*monitor).cmdReset,
	},
	{
		Name:     "registers",
		Shortcut: "r",
		Brief:    "Display CPU registers",
		Data:     (*monitor).cmdRegisters,
	},
	{
		Name:        "disasm",
		Shortcut:    "d",
		Brief:       "Disassemble a range of memory",
		Description: "Disassemble the instructions between start and end, inclusive.",
		HelpText:    "disasm <start> <end>",
		Data:        (*monitor).cmdDisasm,
	},
	{
		Name:        "mem",
		Brief:       "Dump memory",
		Description: "Dump len bytes (default 64) of memory starting at addr.",
		HelpText:    "mem <addr> [len]",
		Data:        (*monitor).cmdMem,
	},
	{
		Name:        "button",
		Brief:       "Press or release a controller button",
		Description: "Set the named button's state on controller 1.",
		HelpText:    "button <name> on|off",
		Data:        (*monitor).cmdButton,
	},
	{
		Name:  "quit",
		Brief: "Quit the monitor",
		Data:  (*monitor).cmdQuit,
	},
})

func main() {
	romPath := flag.String("rom", "", "path to an iNES ROM file")
	logging := flag.Bool("l", false, "enable CPU instruction logging")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: nesmon -rom <file.nes> [-l]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nesmon: %v\n", err)
		os.Exit(1)
	}

	cart, err := nes.NewCartridge(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nesmon: %v\n", err)
		os.Exit(1)
	}

	bus := nes.NewBus()
	bus.InsertCartridge(cart)

	if *logging {
		if err := bus.Cpu.EnableLogging("./logs"); err != nil {
			fmt.Fprintf(os.Stderr, "nesmon: %v\n", err)
			os.Exit(1)
		}
	}

	bus.Reset()

	m := newMonitor(bus)
	m.RunCommands(os.Stdin, os.Stdout, true)
}

// monitor drives a *nes.Bus from a line-oriented command stream. It mirrors
// the command-dispatch shape used by interactive 6502 debug hosts: a
// bufio.Scanner reader, a buffered writer, and a prefix-tree-backed lookup
// of command names.
type monitor struct {
	bus         *nes.Bus
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	lastCmd     *cmd.Selection

	buttonTree *prefixtree.Tree[int]
}

func newMonitor(bus *nes.Bus) *monitor {
	m := &monitor{
		bus:        bus,
		buttonTree: prefixtree.New[int](),
	}
	for name, idx := range map[string]int{
		"right": 0, "left": 1, "down": 2, "up": 3,
		"start": 4, "select": 5, "b": 6, "a": 7,
	} {
		m.buttonTree.Add(name, idx)
	}
	return m
}

// RunCommands reads commands from r and writes results to w, prompting for
// input when interactive is true. It loops until the reader hits EOF or a
// command handler returns an error (the "quit" command returns one by
// design).
func (m *monitor) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	m.input = bufio.NewScanner(r)
	m.output = bufio.NewWriter(w)
	m.interactive = interactive

	for {
		m.prompt()

		line, err := m.getLine()
		if err != nil {
			break
		}

		var sel cmd.Selection
		if line != "" {
			sel, err = cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				m.println("command not found")
				continue
			case err == cmd.ErrAmbiguous:
				m.println("command is ambiguous")
				continue
			case err != nil:
				m.printf("error: %v\n", err)
				continue
			}
		} else if m.lastCmd != nil {
			sel = *m.lastCmd
		}

		if sel.Command == nil {
			continue
		}
		m.lastCmd = &sel

		handler := sel.Command.Data.(func(*monitor, cmd.Selection) error)
		if err := handler(m, sel); err != nil {
			break
		}
	}

	m.flush()
}

func (m *monitor) flush() { m.output.Flush() }

func (m *monitor) printf(format string, args ...interface{}) {
	fmt.Fprintf(m.output, format, args...)
	m.flush()
}

func (m *monitor) println(args ...interface{}) {
	fmt.Fprintln(m.output, args...)
	m.flush()
}

func (m *monitor) getLine() (string, error) {
	if m.input.Scan() {
		return m.input.Text(), nil
	}
	if m.input.Err() != nil {
		return "", m.input.Err()
	}
	return "", io.EOF
}

func (m *monitor) prompt() {
	if m.interactive {
		m.printf("nesmon> ")
	}
}

func (m *monitor) cmdHelp(sel cmd.Selection) error {
	commands := sel.Command.Tree
	m.printf("%s commands:\n", commands.Title)
	for _, c := range commands.Commands {
		if c.Brief != "" {
			m.printf("    %-10s  %s\n", c.Name, c.Brief)
		}
	}
	return nil
}

func (m *monitor) cmdStep(sel cmd.Selection) error {
	n := 1
	if len(sel.Args) > 0 {
		v, err := strconv.Atoi(sel.Args[0])
		if err != nil || v < 1 {
			m.println("invalid step count")
			return nil
		}
		n = v
	}

	for i := 0; i < n; i++ {
		m.stepInstruction()
	}
	m.printRegisters()
	return nil
}

// stepInstruction clocks the bus until exactly one new CPU instruction has
// been fetched and executed. It first drains any cycles left over from a
// prior instruction, then clocks through the idle PPU-only cycles until the
// CPU's next fetch actually runs.
func (m *monitor) stepInstruction() {
	cpu := m.bus.Cpu
	for cpu.Cycles != 0 {
		m.bus.Clock()
	}
	for cpu.Cycles == 0 {
		m.bus.Clock()
	}
}

func (m *monitor) cmdRun(sel cmd.Selection) error {
	defer nes.TimeTrack(time.Now())
	m.println("running; ctrl-C to stop the process")
	for {
		m.bus.Clock()
	}
}

func (m *monitor) cmdReset(sel cmd.Selection) error {
	m.bus.Reset()
	m.println("reset")
	return nil
}

func (m *monitor) cmdRegisters(sel cmd.Selection) error {
	m.printRegisters()
	return nil
}

func (m *monitor) printRegisters() {
	cpu := m.bus.Cpu
	m.printf("PC=%04X A=%02X X=%02X Y=%02X SP=%02X P=%08b cyc=%d\n",
		cpu.Pc, cpu.A, cpu.X, cpu.Y, cpu.Sp, cpu.Status, cpu.CycleCount)
}

func (m *monitor) cmdDisasm(sel cmd.Selection) error {
	if len(sel.Args) < 2 {
		m.println("syntax: disasm <start> <end>")
		return nil
	}

	start, ok1 := parseAddr(sel.Args[0])
	end, ok2 := parseAddr(sel.Args[1])
	if !ok1 || !ok2 {
		m.println("invalid address")
		return nil
	}

	lines := m.bus.Cpu.Disassemble(start, end)
	for addr := start; ; addr++ {
		if line, ok := lines[addr]; ok {
			m.println(line)
		}
		if addr == end {
			break
		}
	}
	return nil
}

func (m *monitor) cmdMem(sel cmd.Selection) error {
	if len(sel.Args) < 1 {
		m.println("syntax: mem <addr> [len]")
		return nil
	}

	addr, ok := parseAddr(sel.Args[0])
	if !ok {
		m.println("invalid address")
		return nil
	}

	length := 64
	if len(sel.Args) > 1 {
		v, err := strconv.Atoi(sel.Args[1])
		if err == nil && v > 0 {
			length = v
		}
	}

	const perRow = 16
	for row := 0; row < length; row += perRow {
		m.printf("%04X:", int(addr)+row)
		for col := 0; col < perRow && row+col < length; col++ {
			b := m.bus.CpuDebugRead(addr + uint16(row+col))
			m.printf(" %02X", b)
		}
		m.println()
	}
	return nil
}

func (m *monitor) cmdButton(sel cmd.Selection) error {
	if len(sel.Args) < 2 {
		m.println("syntax: button <name> on|off")
		return nil
	}

	idx, err := m.buttonTree.FindValue(strings.ToLower(sel.Args[0]))
	if err != nil {
		m.println("unknown button name")
		return nil
	}

	pressed := sel.Args[1] == "on"
	name := buttonNameByIndex(idx)
	if !m.bus.Controllers[0].SetButton(name, pressed) {
		m.println("unknown button name")
	}
	return nil
}

func buttonNameByIndex(idx int) string {
	names := []string{"right", "left", "down", "up", "start", "select", "b", "a"}
	if idx < 0 || idx >= len(names) {
		return ""
	}
	return names[idx]
}

func (m *monitor) cmdQuit(sel cmd.Selection) error {
	return errors.New("quit")
}

func parseAddr(s string) (uint16, bool) {
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
