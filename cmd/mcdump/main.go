// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// mcdump parses a McCode instrument and dumps selected slices of its
// intermediate representation as indented JSON.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	mccode "github.com/mccode-dev/mccode"
	"github.com/spf13/cobra"
)

var (
	all        bool
	parameters bool
	components bool
	flowEdges  bool
	flags      bool
	xray       bool
)

func prettyPrint(buff []byte) string {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, buff, "", "\t"); err != nil {
		log.Println("JSON indent error: ", err)
		return string(buff)
	}
	return prettyJSON.String()
}

func main() {
	root := &cobra.Command{
		Use:   "mcdump [flags] INSTR...",
		Short: "Dump the parsed IR of McCode instrument files",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, filename := range args {
				parseInstrument(filename)
			}
		},
	}
	fl := root.Flags()
	fl.BoolVar(&all, "all", false, "dump the full instrument IR")
	fl.BoolVar(&parameters, "parameters", false, "dump the instrument parameters")
	fl.BoolVar(&components, "components", false, "dump the component instances")
	fl.BoolVar(&flowEdges, "flow", false, "dump the particle flow edges")
	fl.BoolVar(&flags, "flags", false, "dump the decoded dependency flags")
	fl.BoolVar(&xray, "xray", false, "use the McXtrace component library")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseInstrument(filename string) {
	log.Printf("Processing filename %s", filename)

	flavor := mccode.McStas
	if xray {
		flavor = mccode.McXtrace
	}
	reader := mccode.NewReader(&mccode.Options{Flavor: flavor})
	instr, err := reader.GetInstrument(filename)
	if err != nil {
		log.Printf("Error while parsing file: %s, reason: %s", filename, err)
		return
	}

	if all {
		full, _ := json.Marshal(instr)
		fmt.Println(prettyPrint(full))
		return
	}
	if parameters {
		buf, _ := json.Marshal(instr.Parameters)
		fmt.Println(prettyPrint(buf))
	}
	if components {
		names := make([]map[string]string, 0, len(instr.Components))
		for _, inst := range instr.Components {
			names = append(names, map[string]string{
				"name": inst.Name, "type": inst.Type.Name, "category": inst.Type.Category,
			})
		}
		buf, _ := json.Marshal(names)
		fmt.Println(prettyPrint(buf))
	}
	if flowEdges {
		buf, _ := json.Marshal(instr.FlowEdges)
		fmt.Println(prettyPrint(buf))
	}
	if flags {
		decoded, err := instr.DecodedFlags(mccode.NewConfig())
		if err != nil {
			log.Printf("Error decoding flags for %s: %s", filename, err)
			return
		}
		buf, _ := json.Marshal(decoded)
		fmt.Println(prettyPrint(buf))
	}
}
