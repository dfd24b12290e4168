// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// mcfmt formats McCode DSL source files (.instr and .comp).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mccode "github.com/mccode-dev/mccode"
	"github.com/spf13/cobra"
)

var (
	inplace          bool
	check            bool
	diff             bool
	clangFormat      bool
	clangFormatCfg   string
	clangFormatStyle string
)

func main() {
	root := &cobra.Command{
		Use:   "mcfmt [flags] FILE...",
		Short: "Format McCode DSL source files (.instr and .comp)",
		Long: `mcfmt reformats McCode instrument and component sources while
preserving every comment, and regenerates the McDoc header of components
from the declared parameter sets. C code inside %{ ... %} blocks can
optionally be piped through clang-format.`,
		Args: cobra.MinimumNArgs(1),
		RunE: run,

		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.Flags()
	flags.BoolVarP(&inplace, "inplace", "i", false, "modify files in place instead of printing to stdout")
	flags.BoolVar(&check, "check", false, "exit 1 when any file is not already formatted")
	flags.BoolVar(&diff, "diff", false, "print a unified diff of what would change")
	flags.BoolVar(&clangFormat, "clang-format", false, "format C blocks with clang-format and the .clang-format it finds itself; the official McCode config is not fetched")
	flags.StringVar(&clangFormatCfg, "clang-format-config", "", "format C blocks using this .clang-format file")
	flags.StringVar(&clangFormatStyle, "clang-format-style", "", "format C blocks using a named clang-format style")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cBlockFormatter() func(string) string {
	if clangFormatStyle != "" {
		return mccode.MakeClangFormatter("", clangFormatStyle)
	}
	if clangFormatCfg != "" {
		return mccode.MakeClangFormatter(clangFormatCfg, "")
	}
	if clangFormat {
		// Without an explicit config the local tree's .clang-format is
		// picked up by clang-format itself.
		return mccode.MakeClangFormatter("", "")
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	clangFmt := cBlockFormatter()
	unformatted := 0
	failures := 0

	for _, path := range args {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".instr" && ext != ".comp" {
			fmt.Fprintf(os.Stderr, "mcfmt: skipping %s: unsupported extension %q\n", path, ext)
			continue
		}
		original, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcfmt: %v\n", err)
			failures++
			continue
		}
		formatted, err := mccode.FormatSource(original, ext, path, clangFmt)
		if err != nil {
			// The original content is kept untouched on any error.
			fmt.Fprintf(os.Stderr, "mcfmt: %s: %v\n", path, err)
			failures++
			continue
		}
		changed := formatted != string(original)
		switch {
		case check:
			if changed {
				fmt.Printf("%s is not formatted\n", path)
				unformatted++
			}
		case diff:
			if changed {
				fmt.Print(unifiedDiff(string(original), formatted, path))
			}
		case inplace:
			if changed {
				if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
					fmt.Fprintf(os.Stderr, "mcfmt: %v\n", err)
					failures++
				}
			}
		default:
			fmt.Print(formatted)
		}
	}

	if failures > 0 || (check && unformatted > 0) {
		os.Exit(1)
	}
	return nil
}

// unifiedDiff renders a minimal line diff between the original and the
// formatted text.
func unifiedDiff(original, formatted, filename string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s (formatted)\n", filename, filename)
	oldLines := strings.Split(original, "\n")
	newLines := strings.Split(formatted, "\n")
	max := len(oldLines)
	if len(newLines) > max {
		max = len(newLines)
	}
	for i := 0; i < max; i++ {
		var o, n string
		if i < len(oldLines) {
			o = oldLines[i]
		}
		if i < len(newLines) {
			n = newLines[i]
		}
		if o == n {
			continue
		}
		if i < len(oldLines) {
			fmt.Fprintf(&b, "-%s\n", o)
		}
		if i < len(newLines) {
			fmt.Fprintf(&b, "+%s\n", n)
		}
	}
	return b.String()
}
