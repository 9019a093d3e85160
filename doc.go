/*
Package routedit documents the routedit module.

This module is CLI-first and ships the routedit command:

	go install github.com/nuetzliches/routedit/cmd/routedit@latest

Most implementation packages in this repository are internal and are not a
stable public Go API.
*/
package routedit
