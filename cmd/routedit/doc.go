// Command routedit edits Ocelot API gateway routing files.
//
// routedit opens an ocelot.json in a terminal editor, keeps every saved
// version in a local history and offers batch commands for formatting,
// validating and diffing routing files.
//
// Install:
//
//	go install github.com/nuetzliches/routedit/cmd/routedit@latest
//
// Usage:
//
//	routedit edit ./ocelot.json
//	routedit validate --file ./ocelot.json --format text
package main
