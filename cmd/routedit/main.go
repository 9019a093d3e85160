package main

import (
	"os"

	"github.com/nuetzliches/routedit/internal/app"
)

func main() {
	os.Exit(app.Main(os.Args))
}
