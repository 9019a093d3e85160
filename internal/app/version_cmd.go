package app

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Go        string `json:"go"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:   strings.TrimSpace(version),
		Commit:    strings.TrimSpace(commit),
		BuildDate: strings.TrimSpace(buildDate),
		Go:        runtime.Version(),
	}
}

func versionCmd(args []string, std streams) int {
	fs := newFlagSet("version", std)
	long := fs.Bool("long", false, "include commit, build date and Go version")
	asJSON := fs.Bool("json", false, "print build information as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(std.err, "usage: routedit version [--long] [--json]")
		return 2
	}

	info := currentBuild()
	switch {
	case *asJSON:
		enc := json.NewEncoder(std.out)
		if err := enc.Encode(info); err != nil {
			fmt.Fprintf(std.err, "version: %v\n", err)
			return 1
		}
	case *long:
		fmt.Fprintf(std.out, "routedit %s\n  commit:  %s\n  built:   %s\n  go:      %s\n", info.Version, info.Commit, info.BuildDate, info.Go)
	default:
		fmt.Fprintf(std.out, "routedit %s\n", info.Version)
	}
	return 0
}
