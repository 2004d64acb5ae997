package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"runtime"

	"github.com/chaitanya1-coder/docufy/pkg/archive"
)

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

// runDoctorCmd checks configuration, indexer access and local storage.
// It exits 1 if any check fails.
func runDoctorCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("doctor", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	profile := cmd.String("config", "", "YAML profile")
	jsonOutput := cmd.Bool("json", false, "Output results as JSON")
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

	var results []checkResult
	add := func(name, status, detail string) {
		results = append(results, checkResult{Name: name, Status: status, Detail: detail})
	}

	add("go_runtime", "ok", fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))
	add("network", "ok", fmt.Sprintf("%s (%s)", a.cfg.Network.DisplayName(), a.cfg.BaseURL()))

	if err := a.cfg.CheckAPIKey(); err != nil {
		add("api_key", "fail", err.Error())
	} else {
		add("api_key", "ok", a.cfg.MaskedAPIKey())
		client := a.indexerClient(a.limiter())
		if info, err := client.NetworkInfo(ctx); err != nil {
			add("indexer", "fail", err.Error())
		} else {
			add("indexer", "ok", fmt.Sprintf("reachable, circulating supply %s lovelace", info.Supply.Circulating))
		}
	}

	if a.rt.RedisAddr != "" {
		add("rate_limit", "ok", "shared via redis at "+a.rt.RedisAddr)
	} else {
		add("rate_limit", "ok", "local token bucket")
	}

	if j, err := a.openJournal(ctx); err != nil {
		add("journal", "fail", err.Error())
	} else if _, err := j.List(ctx, 1); err != nil {
		add("journal", "fail", err.Error())
	} else {
		add("journal", "ok", "readable")
	}

	if arch, err := archive.NewFromEnv(ctx); err != nil {
		add("archive", "fail", err.Error())
	} else if arch == nil {
		add("archive", "warn", "disabled")
	} else {
		add("archive", "ok", "configured")
	}

	if a.rt.KeyFile == "" {
		add("signing_key", "warn", "DOCUFY_KEY_FILE not set (needed for issue and serve)")
	} else {
		add("signing_key", "ok", a.rt.KeyFile)
	}

	allOK := true
	for _, r := range results {
		if r.Status == "fail" {
			allOK = false
		}
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(results, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		for _, r := range results {
			icon := "✅"
			switch r.Status {
			case "warn":
				icon = "⚠️ "
			case "fail":
				icon = "❌"
			}
			_, _ = fmt.Fprintf(stdout, "%s %-12s %s\n", icon, r.Name, r.Detail)
		}
	}
	if !allOK {
		return 1
	}
	return 0
}
