// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/mmc28a/vixl/aarch32"
	"github.com/mmc28a/vixl/asm"
	"github.com/mmc28a/vixl/emulator"
)

func main() {
	var compile string
	var output string
	var thumb bool
	var run bool
	var define string
	var verbose bool

	flag.StringVar(&compile, "c", "", ".s file to assemble")
	flag.StringVar(&output, "o", "-", "Binary output")
	flag.BoolVar(&thumb, "t", false, "Assemble T32 instead of A32")
	flag.BoolVar(&run, "r", false, "Run the result under the emulator")
	flag.StringVar(&define, "D", "", "Predefines, NAME=VALUE comma separated")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(compile) == 0 {
		log.Fatalf("%v: no input file", os.Args[0])
	}

	inf, err := os.Open(compile)
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}
	defer inf.Close()

	isa := aarch32.A32
	if thumb {
		isa = aarch32.T32
	}

	assembler := &asm.Assembler{ISA: isa, Verbose: verbose}
	for _, def := range strings.Split(define, ",") {
		if len(def) == 0 {
			continue
		}
		name, value, ok := strings.Cut(def, "=")
		if !ok {
			log.Fatalf("%v: bad predefine: %v", os.Args[0], def)
		}
		assembler.Predefine(name, value)
	}

	prog, err := assembler.Parse(inf)
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}

	if run {
		emu := emulator.New(isa, prog.Code)
		emu.Verbose = verbose
		if err := emu.Run(0); err != nil {
			log.Fatal(err)
		}
		stmt := prog.Debug(aarch32.Offset(emu.PC()))
		if stmt != nil {
			log.Printf("bkpt %#x at line %d: %v", emu.BkptImm, stmt.LineNo, stmt.Line)
		}
		for n, v := range emu.R {
			log.Printf("r%-2d %#010x", n, v)
		}
		return
	}

	ouf := os.Stdout
	if output != "-" {
		ouf, err = os.Create(output)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		defer ouf.Close()
	}

	if _, err := ouf.Write(prog.Code); err != nil {
		log.Fatalf("%v: %v", output, err)
	}
}
