// Command goldoon-log is a tool for viewing and analyzing station log files.
//
// Log files are written by goldoon-device when run with -protocol-log.
//
// Usage:
//
//	goldoon-log <command> [flags] <file.glog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	goldoon-log view station.glog
//
//	# View only radio events
//	goldoon-log view -layer radio station.glog
//
//	# View the disconnects
//	goldoon-log view -event sta_disconnected station.glog
//
//	# Keep one session
//	goldoon-log filter -session 3f2a9c1e -o session.glog station.glog
//
//	# Show statistics
//	goldoon-log stats station.glog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/goldoon/goldoon-go/cmd/goldoon-log/commands"
)

const usage = `goldoon-log - Station Log Analyzer

Usage:
  goldoon-log <command> [flags] <file.glog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "goldoon-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, synopsis, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "goldoon-log %s - %s\n\nUsage:\n  goldoon-log %s %s\n\nFlags:\n", name, synopsis, name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses args and returns the log file path, exiting on errors.
func parseArgs(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := newFlagSet("view", "View log file in human-readable format", "[flags] <file.glog>")
	session := fs.String("session", "", "Filter by session ID")
	layer := fs.String("layer", "", "Filter by layer (radio, connection, coap)")
	category := fs.String("category", "", "Filter by category (net, state, exchange, error)")
	event := fs.String("event", "", "Filter by stack event (e.g. got_ip4)")
	path := parseArgs(fs, args)

	filter := commands.ViewFilter{SessionID: *session}
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		exitOnError(err)
		filter.Layer = &l
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		exitOnError(err)
		filter.Category = &c
	}
	if *event != "" {
		k, err := commands.ParseEventFlag(*event)
		exitOnError(err)
		filter.NetKind = k
	}

	exitOnError(commands.RunView(path, filter, os.Stdout))
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export log file to JSON or CSV format", "[flags] <file.glog>")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parseArgs(fs, args)

	exitOnError(commands.RunExport(path, *format, *output))
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter log file and write to new file", "[flags] <file.glog>")
	output := fs.String("o", "", "Output file (required)")
	session := fs.String("session", "", "Filter by session ID")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (radio, connection, coap)")
	category := fs.String("category", "", "Filter by category (net, state, exchange, error)")
	event := fs.String("event", "", "Filter by stack event (e.g. got_ip4)")
	path := parseArgs(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, commands.FilterOptions{
		Output:    *output,
		SessionID: *session,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Layer:     *layer,
		Category:  *category,
		Event:     *event,
	})
	exitOnError(err)
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the log file", "<file.glog>")
	path := parseArgs(fs, args)

	exitOnError(commands.RunStats(path, os.Stdout))
}
