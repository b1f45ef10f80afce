// canonschema loads canon type definitions from a YAML document and prints
// what the generator derives from them: the resolved variant tags, the
// inferred generic bounds and the schema registry of the selected roots.
//
// Usage:
//
//	canonschema [flags] definitions.yaml
//
// Every non-generic type is a root unless --type selects roots explicitly.
// Generic types are selected with their arguments, e.g. --type 'Pair[uint32, string]'.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/arloliu/canon/diag"
	"github.com/arloliu/canon/plan"
	"github.com/arloliu/canon/schema"
	"github.com/arloliu/canon/typedef"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

type options struct {
	roots   []string
	format  string
	verbose bool
	plans   bool
}

var errDefinitions = errors.New("definitions have errors")

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("canonschema", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringArrayVarP(&opts.roots, "type", "t", nil, "root type to export (repeatable; default: every non-generic type)")
	flagSet.StringVarP(&opts.format, "format", "f", "text", "output format: text, json, yaml or cbor")
	flagSet.BoolVar(&opts.plans, "plans", true, "print variant tags and bounds before a text schema")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress at debug level")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  canonschema [flags] definitions.yaml\n\nReads standard input when the file is \"-\".\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return fmt.Errorf("expected one definitions file, got %d arguments", flagSet.NArg())
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	format, err := schema.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	u, err := load(flagSet.Arg(0), stdin)
	if err != nil {
		return err
	}
	logger.Debug("definitions loaded", "file", flagSet.Arg(0), "types", u.Len(), "namespace", u.Namespace)

	var collector diag.Collector
	logSink := diag.NewSlogSink(logger)
	sink := diag.SinkFunc(func(d diag.Diagnostic) {
		collector.Report(d)
		logSink.Report(d)
	})

	plans := planAll(u, sink)
	if collector.Errors() > 0 {
		return fmt.Errorf("%w: %d errors", errDefinitions, collector.Errors())
	}

	roots, err := selectRoots(u, opts.roots)
	if err != nil {
		return err
	}

	b, err := schema.NewBuilder(u)
	if err != nil {
		return err
	}
	declared := make([]string, 0, len(roots))
	for _, root := range roots {
		if err := checkRoot(u, plans, root); err != nil {
			sink.Report(diag.FromError(err))
			continue
		}
		decl, err := b.Visit(root)
		if err != nil {
			sink.Report(diag.FromError(err))
			continue
		}
		logger.Debug("root visited", "type", root.String(), "declaration", decl)
		declared = append(declared, decl)
	}

	if collector.Errors() > 0 {
		return fmt.Errorf("%w: %d errors", errDefinitions, collector.Errors())
	}

	if format == schema.FormatText && opts.plans {
		if err := writePlans(stdout, u, plans); err != nil {
			return err
		}
	}

	doc := b.Registry().Document(strings.Join(declared, ", "))

	return doc.Write(stdout, format)
}

func load(path string, stdin io.Reader) (*typedef.Universe, error) {
	if path == "-" {
		return typedef.LoadYAML(stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return typedef.LoadYAML(f)
}

// planAll builds the plan of every definition, reporting failures to sink.
func planAll(u *typedef.Universe, sink diag.Sink) map[string]*plan.Plan {
	plans := make(map[string]*plan.Plan, u.Len())
	for _, def := range u.Definitions() {
		p, err := plan.Build(def)
		if err != nil {
			sink.Report(diag.FromError(err))
			continue
		}
		plans[def.Name] = p
	}

	return plans
}

func selectRoots(u *typedef.Universe, names []string) ([]typedef.TypeRef, error) {
	if len(names) == 0 {
		var roots []typedef.TypeRef
		for _, def := range u.Definitions() {
			if len(def.Params) == 0 {
				roots = append(roots, def.Ref())
			}
		}

		return roots, nil
	}

	roots := make([]typedef.TypeRef, 0, len(names))
	for _, name := range names {
		ref, err := typedef.ParseTypeRef(name)
		if err != nil {
			return nil, err
		}
		roots = append(roots, ref)
	}

	return roots, nil
}

// checkRoot verifies that the arguments of a generic root satisfy its bounds.
func checkRoot(u *typedef.Universe, plans map[string]*plan.Plan, root typedef.TypeRef) error {
	if root.Kind != typedef.RefNamed {
		return nil
	}
	p, ok := plans[root.Name]
	if !ok {
		return nil
	}

	return p.Check(root.Args, u)
}

func writePlans(w io.Writer, u *typedef.Universe, plans map[string]*plan.Plan) error {
	for _, def := range u.Definitions() {
		p := plans[def.Name]

		name := def.Name
		if len(def.Params) > 0 {
			name += "[" + strings.Join(def.Params, ", ") + "]"
		}
		if _, err := fmt.Fprintf(w, "type %s (%s)\n", name, def.Shape); err != nil {
			return err
		}
		for _, vp := range p.Variants {
			if _, err := fmt.Fprintf(w, "  %s = %d\n", vp.Name, vp.Tag); err != nil {
				return err
			}
		}
		if len(def.Params) > 0 {
			if _, err := fmt.Fprintf(w, "  bounds %s\n", p.Bounds); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w)

	return err
}
