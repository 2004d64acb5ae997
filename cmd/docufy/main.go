// Command docufy issues and verifies PDF certificates anchored on Cardano.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "hash":
		return runHashCmd(args[2:], stdout, stderr)
	case "issue":
		return runIssueCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "wallet":
		return runWalletCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(args[2:], stdout, stderr)
	case "journal":
		return runJournalCmd(args[2:], stdout, stderr)
	case "serve", "server":
		return runServeCmd(args[2:], stdout, stderr)
	case "token":
		return runTokenCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorRed   = "\033[31m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sDocufy%s\n", ColorBold+ColorBlue, ColorReset)
	fmt.Fprintf(w, "%sPDF certificates anchored in Cardano transaction metadata.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  docufy <command> [flags] [file]")
	fmt.Fprintln(w, "")

	printSection(w, "CERTIFICATES")
	printCommand(w, "hash", "Print the certificate hash of PDF files (--json)")
	printCommand(w, "issue", "Anchor a PDF on chain (--key, --json)")
	printCommand(w, "verify", "Check a PDF against an address (--address, --json)")
	printCommand(w, "journal", "List issuance attempts (--limit, --json)")

	printSection(w, "WALLET")
	printCommand(w, "keygen", "Create a payment signing key (--out)")
	printCommand(w, "wallet", "Describe the key wallet (--key)")

	printSection(w, "OPERATIONS")
	printCommand(w, "doctor", "Check configuration and indexer access")
	printCommand(w, "serve", "Run the HTTP API (--addr)")
	printCommand(w, "token", "Mint an API bearer token (--subject, --ttl)")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Every command accepts --config <profile.yaml> on top of DOCUFY_* environment variables.")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-10s%s %s\n", ColorGreen, name, ColorReset, desc)
}
