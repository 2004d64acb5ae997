package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/chaitanya1-coder/docufy/pkg/certificate"
)

// runHashCmd prints the certificate hash of each file. Nothing leaves the
// machine.
func runHashCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("hash", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output results as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: docufy hash [--json] <file.pdf>...")
		return 2
	}

	type row struct {
		File string `json:"file"`
		Hash string `json:"certificate_hash"`
		Size int    `json:"size"`
	}
	var rows []row
	for _, path := range cmd.Args() {
		f, err := certificate.LoadFile(path)
		if err != nil {
			printError(stderr, err)
			return 2
		}
		d, err := certificate.Hash(f)
		if err != nil {
			printError(stderr, err)
			return 2
		}
		rows = append(rows, row{File: path, Hash: d.String(), Size: len(f.Data)})
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(rows, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(stdout, "%s  %s\n", r.Hash, r.File)
	}
	return 0
}
