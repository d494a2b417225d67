package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	sentinelStart = "<!-- hidl-gen:start -->"
	sentinelEnd   = "<!-- hidl-gen:end -->"
)

// runInit implements the `hidl-gen init` subcommand, which writes (or
// updates) a package-root bootstrap note describing how this directory is
// expected to be wired into a -r PREFIX:PATH invocation.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("hidl-gen init", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		prefix string
		dryRun bool
	)
	fs.StringVarP(&prefix, "prefix", "r", "", "package prefix this root maps to, e.g. android.hardware.foo")
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: hidl-gen init [-r PREFIX] [flags] [path-to-note]

Write a package-root bootstrap note describing the -r PREFIX:PATH mapping a
hidl-gen caller should use for this directory. The section is wrapped in
sentinel comments so repeated runs update it in place instead of duplicating
it. Creates the file if it does not exist.

path-to-note defaults to ./HIDL_PACKAGE_ROOT.md.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	section := generateSection(prefix)

	if dryRun && fs.NArg() == 0 {
		fmt.Fprintln(stdout, section)
		return nil
	}

	path := "HIDL_PACKAGE_ROOT.md"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Fprintf(stderr, "wrote hidl-gen package-root note to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped bootstrap note body. With no
// prefix given it documents the convention generically; with one given it
// bakes in the exact -r option this directory expects.
func generateSection(prefix string) string {
	rOption := "-r PREFIX:PATH"
	if prefix != "" {
		rOption = fmt.Sprintf("-r %s:%s", prefix, ".")
	}

	body := `## hidl-gen package root

This directory is a HIDL package root: it holds an optional ` + "`current.txt`" + `
hash manifest and one subdirectory tree per package, with version-numbered
leaves (` + "`1.0/`, `1.1/`" + `) each containing that version's ` + "`.hal`" + ` files and an
` + "`Android.bp`" + ` generated by ` + "`hidl-gen -Landroidbp`" + `.

Invoke hidl-gen against this root with:
` + "```" + `
hidl-gen -o OUTPUT -L FORMAT ` + rOption + ` PACKAGE@VERSION[::INTERFACE]
` + "```" + `

` + "`current.txt`" + ` freezes the released hash of every interface in a package
version; once a version has shipped, do not hand-edit its ` + "`.hal`" + ` files
without also running ` + "`hidl-gen -Lhash`" + ` to regenerate the manifest entry, or
every subsequent parse of that interface will fail the hash gate.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
