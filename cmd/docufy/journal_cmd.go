package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

func runJournalCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("journal", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	limit := cmd.Int("limit", 20, "Number of attempts to show")
	profile := cmd.String("config", "", "YAML profile")
	jsonOutput := cmd.Bool("json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	a, err := loadApp(*profile, stderr)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	defer a.Close()

	ctx := context.Background()
	j, err := a.openJournal(ctx)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	entries, err := j.List(ctx, *limit)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(entries, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stdout, "No issuance attempts recorded.")
		return 0
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tFILE\tNETWORK\tSTAGE\tRESULT")
	for _, e := range entries {
		result := e.TxHash
		if e.Error != "" {
			result = "failed: " + e.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime), e.FileName, e.Network, e.Stage, result)
	}
	_ = tw.Flush()
	return 0
}
