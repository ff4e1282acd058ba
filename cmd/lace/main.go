// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lace assembles and runs LC-3 programs. It is a small
// flag-based dispatcher in the manner of app/main.go, grounded on the
// Rust original's clap subcommand enum (assemble, run, debug, check,
// watch) reduced to flag.NewFlagSet per subcommand.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/lace/asm"
	"github.com/beevik/lace/debugger"
	"github.com/beevik/lace/vm"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(3)
	}

	var err error
	switch os.Args[1] {
	case "assemble":
		err = runAssemble(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	case "debug":
		err = runDebug(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	default:
		usage()
		os.Exit(3)
	}

	if err != nil {
		exitOnError(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lace <assemble|check|run|debug|watch> [args]")
}

// exitOnError reports err and exits with the code spec'd by §6: 1 for an
// assembly error, 2 for a runtime (VM) error, 3 for a usage error, and 1
// for anything else (I/O failures opening files, etc.).
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)

	var asmErr *asm.Error
	var vmErr *vm.Error
	switch {
	case errors.As(err, &asmErr):
		os.Exit(1)
	case errors.As(err, &vmErr):
		os.Exit(2)
	case strings.HasPrefix(err.Error(), "usage:"):
		os.Exit(3)
	default:
		os.Exit(1)
	}
}

// assembleFile reads and assembles the named source file, returning the
// resulting image and source map.
func assembleFile(path string, trace bool) (*asm.Image, *asm.SourceMap, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var opt asm.Option
	var traceOut *os.File
	if trace {
		opt |= asm.OptTrace
		traceOut = os.Stderr
	}

	var img *asm.Image
	var sm *asm.SourceMap
	if traceOut != nil {
		img, sm, err = asm.Assemble(string(src), filepath.Base(path), opt, traceOut)
	} else {
		img, sm, err = asm.Assemble(string(src), filepath.Base(path), opt, nil)
	}
	return img, sm, err
}

func objectPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + ".lc3"
}

func mapPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + ".map"
}

// runAssemble implements the "assemble" subcommand: assemble a source file
// to a .lc3 object image and a .map source-map sidecar (§6).
func runAssemble(args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	trace := fs.Bool("trace", false, "write assembler pass tracing to stderr")
	minimal := fs.Bool("m", false, "suppress decorative output")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lace assemble [-trace] [-m] <file.asm>")
	}
	src := fs.Arg(0)

	img, sm, err := assembleFile(src, *trace)
	if err != nil {
		return err
	}

	outPath := objectPath(src)
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := img.WriteTo(out); err != nil {
		return err
	}

	mp := mapPath(src)
	mf, err := os.Create(mp)
	if err != nil {
		return err
	}
	defer mf.Close()
	if _, err := sm.WriteTo(mf); err != nil {
		return err
	}

	if !*minimal {
		fmt.Printf("assembled %s -> %s (%s)\n", src, outPath, mp)
	}
	return nil
}

// runCheck implements the "check" subcommand: assemble only, report
// errors, run nothing (from the Rust original's Command::Check).
func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	minimal := fs.Bool("m", false, "suppress decorative output")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lace check [-m] <file.asm>")
	}
	src := fs.Arg(0)

	_, _, err := assembleFile(src, false)
	if err != nil {
		return err
	}
	if !*minimal {
		fmt.Printf("%s: ok\n", src)
	}
	return nil
}

// runRun implements the "run" subcommand: assemble (or load) and execute
// a program to completion. Ctrl-C exits the process with status 130. With
// -debugger, the program is instead loaded into the debugger (as the
// "debug" subcommand does) before its first instruction executes.
func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Bool("m", false, "suppress decorative output")
	useDebugger := fs.Bool("debugger", false, "start in the debugger before the first instruction")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lace run [-m] [-debugger] <file.asm|file.lc3>")
	}
	if *useDebugger {
		return runDebug(fs.Args())
	}

	img, err := loadOrAssemble(fs.Arg(0))
	if err != nil {
		return err
	}

	restore, err := vm.EnableRawMode(os.Stdin)
	if err != nil {
		return err
	}
	defer restore()

	console := vm.NewConsole(os.Stdin, os.Stdout)
	m := vm.NewMachine(console)
	m.Reset()
	loadImage(m, img)
	m.Reg.PC = img.Origin

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-c:
			os.Exit(130)
		case <-done:
		}
	}()
	defer close(done)

	for {
		out, err := m.Step()
		if err != nil {
			return err
		}
		if out.Halted {
			return nil
		}
	}
}

// runDebug implements the "debug" subcommand: load a program into the
// interactive source-level debugger described in §4.7/§4.8.
func runDebug(args []string) error {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	fs.Bool("m", false, "suppress decorative output")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lace debug [-m] <file.asm|file.lc3>")
	}

	path := fs.Arg(0)
	img, sm, err := loadOrAssembleWithMap(path)
	if err != nil {
		return err
	}

	// Unlike runRun, the debugger's own command loop reads line-buffered,
	// echoed input via bufio.Scanner, so stdin stays in canonical mode
	// here; only a running program's own GETC/IN traps would want raw
	// mode, and those execute synchronously within a single command
	// (step/run), never overlapping with command-line editing.
	console := vm.NewConsole(os.Stdin, os.Stdout)
	m := vm.NewMachine(console)
	m.Reset()
	loadImage(m, img)
	m.Reg.PC = img.Origin

	d := debugger.New(m)
	d.LoadImage(img, sm)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(d, c)

	d.RunCommands(os.Stdin, os.Stdout, true)
	return nil
}

func handleInterrupt(d *debugger.Debugger, c chan os.Signal) {
	for {
		<-c
		d.Break()
	}
}

// runWatch implements the "watch" subcommand: re-run check whenever the
// source file's modification time changes, since no file-watch library
// appears anywhere in the retrieved pack (§A.4).
func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", 500*time.Millisecond, "poll interval")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lace watch [-interval=500ms] <file.asm>")
	}
	src := fs.Arg(0)

	var lastMod time.Time
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	check := func() {
		info, err := os.Stat(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return
		}
		if info.ModTime().Equal(lastMod) {
			return
		}
		lastMod = info.ModTime()

		if _, _, err := assembleFile(src, false); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", src, err)
		} else {
			fmt.Printf("%s: ok\n", src)
		}
	}

	check()
	for range ticker.C {
		check()
	}
	return nil
}

// loadOrAssemble loads a .lc3 object image directly, or assembles a .asm
// source file in place, depending on the file extension.
func loadOrAssemble(path string) (*asm.Image, error) {
	img, _, err := loadOrAssembleWithMap(path)
	return img, err
}

func loadOrAssembleWithMap(path string) (*asm.Image, *asm.SourceMap, error) {
	if strings.EqualFold(filepath.Ext(path), ".lc3") {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		img := &asm.Image{}
		if _, err := img.ReadFrom(f); err != nil {
			return nil, nil, err
		}

		sm := &asm.SourceMap{}
		if mf, err := os.Open(mapPath(path)); err == nil {
			defer mf.Close()
			sm.ReadFrom(mf)
		}
		return img, sm, nil
	}

	return assembleFile(path, false)
}

func loadImage(m *vm.Machine, img *asm.Image) {
	for i, w := range img.Words {
		m.Mem.StoreRaw(img.Origin+uint16(i), w)
	}
}
