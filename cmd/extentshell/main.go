// extentshell is an interactive debug REPL for driving an in-memory
// extent map by hand: set/clear bit-flags over a byte range, alloc/release
// cached buffers, and inspect the resulting state tree and cache.
//
// Commands:
//
//	set <start> <end> <flag>        Set a bit-flag over [start, end]
//	clear <start> <end> <flag>      Clear a bit-flag over [start, end]
//	test <start> <end> <flag>       Report whether the flag is set anywhere/everywhere
//	find <addr> <flag>              Find the first extent at/after addr carrying flag
//	alloc <bytenr> <size>           Allocate (or fetch) a cached buffer
//	release <bytenr> <size>         Release one reference on a cached buffer
//	dirty <bytenr> <size>           Mark a cached buffer dirty
//	clean <bytenr> <size>           Clear a cached buffer's dirty flag
//	dump                            List every extent in the state tree
//	cachesize                       Report the buffer cache's current size
//	help                            Show this help
//	exit / quit / q                 Exit
//
// Flags are named: dirty, uptodate, locked, writeback.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/extentcue/extentmap/pkg/extentmap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "extentshell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	tree := extentmap.Open(extentmap.Options{})
	defer tree.Close()

	repl := &repl{tree: tree}
	return repl.Run()
}

type repl struct {
	tree  *extentmap.Tree
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".extentshell_history")
}

func (r *repl) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("extentshell - extent map debug REPL")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("extentshell> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "set":
			r.cmdSetClear(args, true)
		case "clear":
			r.cmdSetClear(args, false)
		case "test":
			r.cmdTest(args)
		case "find":
			r.cmdFind(args)
		case "alloc":
			r.cmdAlloc(args)
		case "release":
			r.cmdRelease(args)
		case "dirty":
			r.cmdDirty(args)
		case "clean":
			r.cmdClean(args)
		case "dump":
			r.cmdDump()
		case "cachesize":
			fmt.Printf("cache size: %d / %d bytes\n", r.tree.CacheSize(), r.tree.CacheMax())
		default:
			fmt.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{
		"set", "clear", "test", "find",
		"alloc", "release", "dirty", "clean",
		"dump", "cachesize", "help", "exit", "quit", "q",
	}

	var completions []string
	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			completions = append(completions, c)
		}
	}
	return completions
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  set <start> <end> <flag>     Set a bit-flag over [start, end]")
	fmt.Println("  clear <start> <end> <flag>   Clear a bit-flag over [start, end]")
	fmt.Println("  test <start> <end> <flag>    Report coverage of a flag over a range")
	fmt.Println("  find <addr> <flag>           Find the first extent at/after addr with flag")
	fmt.Println("  alloc <bytenr> <size>        Allocate (or fetch) a cached buffer")
	fmt.Println("  release <bytenr> <size>      Release one reference on a cached buffer")
	fmt.Println("  dirty <bytenr> <size>        Mark a cached buffer dirty")
	fmt.Println("  clean <bytenr> <size>        Clear a cached buffer's dirty flag")
	fmt.Println("  dump                         List every extent in the state tree")
	fmt.Println("  cachesize                    Report the buffer cache's current size")
	fmt.Println("  help                         Show this help")
	fmt.Println("  exit / quit / q              Exit")
	fmt.Println()
	fmt.Println("Flags: dirty, uptodate, locked, writeback")
}

func parseFlag(s string) (extentmap.Flags, error) {
	switch strings.ToLower(s) {
	case "dirty":
		return extentmap.FlagDirty, nil
	case "uptodate":
		return extentmap.FlagUptodate, nil
	case "locked":
		return extentmap.FlagLocked, nil
	case "writeback":
		return extentmap.FlagWriteback, nil
	default:
		return 0, fmt.Errorf("unknown flag %q", s)
	}
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func (r *repl) cmdSetClear(args []string, set bool) {
	if len(args) != 3 {
		fmt.Println("Usage: set|clear <start> <end> <flag>")
		return
	}

	start, err := parseUint(args[0])
	if err != nil {
		fmt.Printf("error parsing start: %v\n", err)
		return
	}
	end, err := parseUint(args[1])
	if err != nil {
		fmt.Printf("error parsing end: %v\n", err)
		return
	}
	flag, err := parseFlag(args[2])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	var wasSet bool
	if set {
		wasSet, err = r.tree.State.SetBits(start, end, flag)
	} else {
		wasSet, err = r.tree.State.ClearBits(start, end, flag)
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("OK (was already set somewhere in range: %v)\n", wasSet)
}

func (r *repl) cmdTest(args []string) {
	if len(args) != 3 {
		fmt.Println("Usage: test <start> <end> <flag>")
		return
	}

	start, err := parseUint(args[0])
	if err != nil {
		fmt.Printf("error parsing start: %v\n", err)
		return
	}
	end, err := parseUint(args[1])
	if err != nil {
		fmt.Printf("error parsing end: %v\n", err)
		return
	}
	flag, err := parseFlag(args[2])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("any:    %v\n", r.tree.State.TestRange(start, end, flag, false))
	fmt.Printf("filled: %v\n", r.tree.State.TestRange(start, end, flag, true))
}

func (r *repl) cmdFind(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: find <addr> <flag>")
		return
	}

	addr, err := parseUint(args[0])
	if err != nil {
		fmt.Printf("error parsing addr: %v\n", err)
		return
	}
	flag, err := parseFlag(args[1])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	start, end, ok := r.tree.State.FindFirstBit(addr, flag)
	if !ok {
		fmt.Println("(not found)")
		return
	}
	fmt.Printf("[%d, %d]\n", start, end)
}

func (r *repl) cmdAlloc(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: alloc <bytenr> <size>")
		return
	}

	bytenr, err := parseUint(args[0])
	if err != nil {
		fmt.Printf("error parsing bytenr: %v\n", err)
		return
	}
	size, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("error parsing size: %v\n", err)
		return
	}

	b, err := r.tree.Alloc(bytenr, size)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("OK: buffer at %d, len=%d, refs=%d, flags=%s\n", b.Start(), b.Len(), b.Refs(), b.Flags())
}

func (r *repl) cmdRelease(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: release <bytenr> <size>")
		return
	}

	b, ok := r.findBuffer(args)
	if !ok {
		return
	}
	r.tree.Release(b) // drop the ref findBuffer's Find took
	r.tree.Release(b)
	fmt.Println("OK")
}

func (r *repl) cmdDirty(args []string) {
	b, ok := r.findBuffer(args)
	if !ok {
		return
	}
	if err := r.tree.MarkDirty(b); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	r.tree.Release(b) // drop the ref findBuffer's Find took to inspect it
	fmt.Println("OK")
}

func (r *repl) cmdClean(args []string) {
	b, ok := r.findBuffer(args)
	if !ok {
		return
	}
	if err := r.tree.ClearDirty(b); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	r.tree.Release(b)
	fmt.Println("OK")
}

func (r *repl) findBuffer(args []string) (*extentmap.Buffer, bool) {
	if len(args) != 2 {
		fmt.Println("Usage: <cmd> <bytenr> <size>")
		return nil, false
	}

	bytenr, err := parseUint(args[0])
	if err != nil {
		fmt.Printf("error parsing bytenr: %v\n", err)
		return nil, false
	}
	size, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("error parsing size: %v\n", err)
		return nil, false
	}

	b, ok := r.tree.Find(bytenr, size)
	if !ok {
		fmt.Println("(not cached)")
		return nil, false
	}
	return b, true
}

func (r *repl) cmdDump() {
	extents := r.tree.State.Extents()
	if len(extents) == 0 {
		fmt.Println("(state tree is empty)")
		return
	}

	for _, e := range extents {
		fmt.Printf("[%d, %d] %s\n", e.Start, e.End, e.Flags)
	}
}
