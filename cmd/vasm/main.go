// Command vasm drives the register machine's assembler and
// interpreter: assemble a .vasm source file into a flat bytecode
// image, run that image on the VM, or print a best-effort
// disassembly of it.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/generin0/vasm/asm"
	"github.com/generin0/vasm/diagrender"
	"github.com/generin0/vasm/disasm"
	"github.com/generin0/vasm/vm"
)

var (
	flagDebug  bool
	flagLabels bool
	flagSilent bool
	flagData   bool
)

func main() {
	root := &cobra.Command{
		Use:   "vasm",
		Short: "assembler and VM for the register machine",
	}

	asmCmd := &cobra.Command{
		Use:   "asm <input.vasm> <output.bin>",
		Short: "assemble a .vasm source file into a .bin image",
		Args:  cobra.ExactArgs(2),
		RunE:  runAsm,
	}
	asmCmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "dump a hex listing of the image after writing it")
	asmCmd.Flags().BoolVarP(&flagLabels, "labels", "l", false, "print the resolved label table")
	asmCmd.Flags().BoolVarP(&flagSilent, "silent", "s", false, "suppress progress output on stdout")
	asmCmd.Flags().BoolVarP(&flagData, "data", "D", false, "print the data section bytes")

	runCmd := &cobra.Command{
		Use:   "run <input.bin>",
		Short: "load a .bin image and run it to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "single-step interactively, dumping VM state at each breakpoint")

	disasmCmd := &cobra.Command{
		Use:   "disasm <input.bin>",
		Short: "print a best-effort disassembly of a .bin image",
		Args:  cobra.ExactArgs(1),
		RunE:  runDisasm,
	}

	root.AddCommand(asmCmd, runCmd, disasmCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAsm(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]
	if filepath.Ext(input) != ".vasm" {
		return fmt.Errorf("input file %q must have a .vasm extension", input)
	}
	if filepath.Ext(output) != ".bin" {
		return fmt.Errorf("output file %q must have a .bin extension", output)
	}

	raw, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", input, err)
	}
	lines := strings.Split(string(raw), "\n")

	result, sink := asm.Assemble(lines)

	if sink.WarningCount > 0 {
		diagrender.Render(os.Stderr, sink)
	}
	if sink.HasErrors() {
		diagrender.Render(os.Stderr, sink)
		return fmt.Errorf("assembly failed with %d error(s)", sink.ErrorCount)
	}

	if err := os.WriteFile(output, result.Image, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", output, err)
	}

	if !flagSilent {
		fmt.Printf("OK: wrote %d code byte(s), %d data byte(s) to %s\n",
			len(result.Code), len(result.Data), output)
	}

	if flagLabels {
		for _, l := range result.Labels.All() {
			fmt.Printf("%-32s 0x%04X%s\n", l.Name, l.Address, dataTag(l.IsData))
		}
	}
	if flagData {
		fmt.Print("data:")
		for _, b := range result.Data {
			fmt.Printf(" %02X", b)
		}
		fmt.Println()
	}
	if flagDebug {
		fmt.Print("image:")
		for _, b := range result.Image {
			fmt.Printf(" %02X", b)
		}
		fmt.Println()
	}

	return nil
}

func dataTag(isData bool) string {
	if isData {
		return " (data)"
	}
	return ""
}

func runRun(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", args[0], err)
	}

	machine := vm.New()
	defer machine.Flush()
	machine.Load(image)

	if flagDebug {
		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		machine.DebugOut = out
		machine.RunDebug(os.Stdin, out)
		return nil
	}

	machine.Run()
	return nil
}

func runDisasm(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", args[0], err)
	}
	disasm.Fprint(os.Stdout, image, nil)
	return nil
}
