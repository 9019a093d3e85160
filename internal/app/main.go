package app

import (
	"fmt"
	"io"
)

var (
	version   = "0.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Main runs the routedit command line and returns the process exit code:
// 0 on success, 1 on failure and 2 on usage errors.
func Main(args []string) int {
	return run(args, stdStreams())
}

func run(args []string, std streams) int {
	if len(args) < 2 {
		printHelp(std.err)
		return 2
	}

	switch args[1] {
	case "edit":
		return editCmd(args[2:], std)
	case "fmt":
		return fmtCmd(args[2:], std)
	case "validate":
		return validateCmd(args[2:], std)
	case "diff":
		return diffCmd(args[2:], std)
	case "history":
		return historyCmd(args[2:], std)
	case "version":
		return versionCmd(args[2:], std)
	case "help", "-h", "--help":
		printHelp(std.out)
		return 0
	default:
		fmt.Fprintf(std.err, "unknown command: %s\n", args[1])
		printHelp(std.err)
		return 2
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "routedit")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  routedit edit [FILE] [--no-watch] [--no-lock]")
	fmt.Fprintln(w, "  routedit fmt --file ./ocelot.json [--write]")
	fmt.Fprintln(w, "  routedit validate --file ./ocelot.json --format json|text")
	fmt.Fprintln(w, "  routedit diff [--context N] <old> <new>")
	fmt.Fprintln(w, "  routedit history list [--file ./ocelot.json] [--limit N] [--json]")
	fmt.Fprintln(w, "  routedit history show <revision>")
	fmt.Fprintln(w, "  routedit history restore <revision> [--to ./ocelot.json] [--yes]")
	fmt.Fprintln(w, "  routedit version [--long] [--json]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Common flags: --settings FILE, --dotenv FILE, --log-level debug|info|warn|error")
}
