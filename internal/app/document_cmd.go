package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/nuetzliches/routedit/internal/routeconfig"
)

func newFlagSet(name string, std streams) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(std.err)
	return fs
}

func fmtCmd(args []string, std streams) int {
	fs := newFlagSet("fmt", std)
	var common commonFlags
	common.register(fs)
	path := fs.String("file", "./ocelot.json", "path to the routing file")
	write := fs.Bool("write", false, "rewrite the file in place instead of printing")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	e, err := common.setup(ctx, std, false)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	defer e.close()

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	doc, rep, err := routeconfig.Parse(data)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	for _, w := range rep.Warnings {
		fmt.Fprintf(std.err, "warning: %s\n", w)
	}

	out, err := routeconfig.Format(doc)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	if !*write {
		_, _ = std.out.Write(out)
		return 0
	}
	if bytes.Equal(out, data) {
		return 0
	}
	if err := routeconfig.Save(ctx, *path, doc); err != nil {
		e.logger.Error("config_save_failed", slog.String("path", *path), slog.Any("err", err))
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	e.logger.Info("config_formatted", slog.String("path", *path))
	return 0
}

func validateCmd(args []string, std streams) int {
	fs := newFlagSet("validate", std)
	var common commonFlags
	common.register(fs)
	path := fs.String("file", "./ocelot.json", "path to the routing file")
	format := fs.String("format", "json", "output format: json|text")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *format != "json" && *format != "text" {
		fmt.Fprintf(std.err, "invalid --format %q (use: json|text)\n", *format)
		return 2
	}

	e, err := common.setup(context.Background(), std, false)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	defer e.close()

	data, err := os.ReadFile(*path)
	if err != nil {
		return validateError(std.err, *format, err.Error())
	}
	doc, rep, err := routeconfig.Parse(data)
	if err != nil {
		return validateError(std.err, *format, err.Error())
	}

	res := routeconfig.Validate(doc, rep)
	return emitValidation(std, *format, res)
}

func emitValidation(std streams, format string, res routeconfig.ValidationResult) int {
	w, code := std.out, 0
	if !res.OK {
		w, code = std.err, 1
	}
	if format == "text" {
		fmt.Fprintln(w, routeconfig.FormatValidationText(res))
		return code
	}
	out, err := routeconfig.FormatValidationJSON(res)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	fmt.Fprintln(w, out)
	return code
}

// validateError emits a failure that happened before validation could run in
// the requested format.
func validateError(w io.Writer, format, msg string) int {
	return emitValidation(streams{out: w, err: w}, format, routeconfig.ValidationResult{
		OK:     false,
		Errors: []string{msg},
	})
}

func diffCmd(args []string, std streams) int {
	fs := newFlagSet("diff", std)
	var common commonFlags
	common.register(fs)
	contextLines := fs.Int("context", 3, "number of unified diff context lines")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	posArgs := fs.Args()
	if len(posArgs) != 2 {
		fmt.Fprintln(std.err, "usage: routedit diff [--context N] <old> <new>")
		return 2
	}

	e, err := common.setup(context.Background(), std, false)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	defer e.close()

	oldPath, newPath := posArgs[0], posArgs[1]
	oldData, err := os.ReadFile(oldPath)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	newData, err := os.ReadFile(newPath)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}

	diff, err := routeconfig.FormatDiff(oldData, newData, *contextLines, oldPath, newPath)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	if diff == "" {
		return 0
	}
	fmt.Fprintln(std.out, diff)
	return 1
}
