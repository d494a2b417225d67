// hidl-gen drives interface-description-to-build-artifact generation: given
// one or more fully qualified interface names and a selected output format,
// it resolves each interface through the Coordinator and invokes the
// matching handler.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hidl-gen/hidlgen/internal/coordinator"
	"github.com/hidl-gen/hidlgen/internal/fqname"
	"github.com/hidl-gen/hidlgen/internal/handlers"
)

var version = "dev"

const hidlGenToolName = "hidl-gen"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := pflag.NewFlagSet("hidl-gen", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		rootPath    string
		outputPath  string
		rootOptions []string
		format      string
		testMode    bool
		verbose     bool
		showVersion bool
	)

	fs.StringVarP(&rootPath, "root", "p", os.Getenv("ANDROID_BUILD_TOP"), "package root base path")
	fs.StringVarP(&outputPath, "output", "o", "", "output path")
	fs.StringArrayVarP(&rootOptions, "rootpath", "r", nil, "PREFIX:PATH package root, repeatable")
	fs.StringVarP(&format, "language", "L", "", "output format")
	fs.BoolVarP(&testMode, "test", "t", false, "test mode (androidbp only): disables VNDK placement")
	fs.BoolVarP(&verbose, "verbose", "v", false, "trace file access")
	fs.BoolVarP(&showVersion, "version", "V", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: hidl-gen [-p ROOT] -o OUTPUT -L FORMAT (-r PREFIX:PATH)+ [-t] [-v] FQNAME+\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Fprintf(stdout, "hidl-gen %s\n", version)
		return nil
	}

	if format == "" {
		return errors.New("-L FORMAT is required")
	}
	handler, ok := handlers.Table[format]
	if !ok {
		return errors.Newf("unknown -L format %q", format)
	}
	if testMode && format != "androidbp" {
		return errors.New("-t is only valid with -L androidbp")
	}

	names := fs.Args()
	if len(names) == 0 {
		return errors.New("at least one fqname is required")
	}

	var log *zap.SugaredLogger
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "constructing logger")
		}
		log = l.Sugar()
	}

	c := coordinator.New(log)
	c.SetRootPath(rootPath)
	c.SetVerbose(verbose)

	c.AddDefaultPackagePath("android.hardware", "hardware/interfaces")
	c.AddDefaultPackagePath("android.hidl", "system/libhidl/transport")
	c.AddDefaultPackagePath("android.frameworks", "frameworks/hardware/interfaces")
	c.AddDefaultPackagePath("android.system", "system/hardware/interfaces")

	for _, opt := range rootOptions {
		prefix, path, ok := strings.Cut(opt, ":")
		if !ok {
			return errors.Newf("malformed -r option %q, expected PREFIX:PATH", opt)
		}
		if err := c.AddPackagePath(prefix, path); err != nil {
			return err
		}
	}

	normalizedOutput := normalizeOutputPath(handler.PathRequirement, outputPath, rootPath)

	ctx := &handlers.Context{
		Coordinator: c,
		HidlGenTool: hidlGenToolName,
		TestMode:    testMode,
		Stdout:      stdout,
	}

	for _, raw := range names {
		name, err := fqname.Parse(raw)
		if err != nil {
			return err
		}
		if err := handler.Validate(name); err != nil {
			return err
		}
		if err := handler.Generate(ctx, name, normalizedOutput); err != nil {
			return err
		}
	}

	return nil
}

// normalizeOutputPath shapes the -o value per the selected handler's path
// requirement: directories get a trailing slash, source-tree handlers fall
// back to the root path, and handlers with no output ignore -o entirely.
func normalizeOutputPath(req handlers.PathRequirement, outputPath, rootPath string) string {
	switch req {
	case handlers.NeedsDir:
		return ensureTrailingSlash(outputPath)
	case handlers.NeedsFile:
		return outputPath
	case handlers.NeedsSrc:
		if outputPath == "" {
			outputPath = rootPath
		}
		return ensureTrailingSlash(outputPath)
	default: // NotNeeded
		return ""
	}
}

func ensureTrailingSlash(path string) string {
	if path == "" || strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
