package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/duck/compiler"
	"github.com/slowlang/duck/compiler/format"
	"github.com/slowlang/duck/compiler/front"
	"github.com/slowlang/duck/compiler/ir"
	"github.com/slowlang/duck/compiler/obj"
	"github.com/slowlang/duck/compiler/parse"
	"github.com/slowlang/duck/config"
	"github.com/slowlang/duck/vm"
)

const srcExt = ".duck"

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)

	stderr sync.Mutex
)

func main() {
	compileCmd := &cli.Command{
		Name:   "compile",
		Action: compileAct,
		Args:   cli.Args{},
		Flags: common(
			cli.NewFlag("output,o", "", "output file (single input) or directory"),
			cli.NewFlag("format", "", "object format: text or msgpack"),
			cli.NewFlag("jobs,j", 0, "files compiled in parallel"),
		),
	}

	runCmd := &cli.Command{
		Name:   "run",
		Action: runAct,
		Args:   cli.Args{},
		Flags:  common(runFlags()...),
	}

	execCmd := &cli.Command{
		Name:   "exec",
		Action: execAct,
		Args:   cli.Args{},
		Flags:  common(runFlags()...),
	}

	dumpCmd := &cli.Command{
		Name:   "dump",
		Action: dumpAct,
		Args:   cli.Args{},
		Flags:  common(),
	}

	fmtCmd := &cli.Command{
		Name:   "fmt",
		Action: fmtAct,
		Args:   cli.Args{},
		Flags: common(
			cli.NewFlag("write,w", false, "rewrite files in place"),
		),
	}

	app := &cli.Command{
		Name:        "duck",
		Description: "duck compiles duck programs into quadruples and runs them",
		Commands: []*cli.Command{
			compileCmd,
			runCmd,
			execCmd,
			dumpCmd,
			fmtCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func common(fs ...*cli.Flag) []*cli.Flag {
	return append(fs,
		cli.NewFlag("config", "", "config file (default "+config.DefaultFile+" if present)"),
		cli.NewFlag("log", "", "log verbosity topics, comma separated (quad,vm_trace,diag,parse,...)"),
		cli.HelpFlag,
	)
}

func runFlags() []*cli.Flag {
	return []*cli.Flag{
		cli.NewFlag("max-steps", -1, "instruction budget, 0 for unlimited, -1 for config value"),
		cli.NewFlag("coverage", false, "print the listing with executed instructions marked"),
	}
}

// setup reads the config and prepares logging and colors.
func setup(c *cli.Command) (context.Context, config.Config, error) {
	path := c.String("config")

	cfg, err := config.Load(path, path != "")
	if err != nil {
		return nil, cfg, errors.Wrap(err, "config")
	}

	if v := c.String("log"); v != "" {
		tlog.DefaultLogger.SetVerbosity(v)
	}

	switch cfg.UI.Color {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	}

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return ctx, cfg, nil
}

func compileAct(c *cli.Command) (err error) {
	ctx, cfg, err := setup(c)
	if err != nil {
		return err
	}

	if len(c.Args) == 0 {
		return errors.New("no input files")
	}

	fstr := cfg.Output.Format
	if v := c.String("format"); v != "" {
		fstr = v
	}

	f, err := obj.ParseFormat(fstr)
	if err != nil {
		return err
	}

	out := c.String("output")
	if out != "" && len(c.Args) > 1 {
		if st, serr := os.Stat(out); serr == nil && !st.IsDir() {
			return errors.New("-o %v: must be a directory for several inputs", out)
		}
	}

	jobs := cfg.Compile.Jobs
	if j := c.Int("jobs"); j > 0 {
		jobs = j
	}

	var g errgroup.Group

	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for _, src := range c.Args {
		src := src
		dst := objPath(src, out, cfg.Output.Dir, f, len(c.Args) > 1)

		g.Go(func() error {
			u, err := compileFile(ctx, src)
			if err != nil {
				return err
			}

			err = obj.WriteFile(ctx, dst, u.Program, f)
			if err != nil {
				return errors.Wrap(err, "%v", src)
			}

			tlog.SpanFromContext(ctx).Printw("compiled", "src", src, "obj", dst, "quads", len(u.Program.Quads))

			return nil
		})
	}

	return g.Wait()
}

func runAct(c *cli.Command) (err error) {
	ctx, cfg, err := setup(c)
	if err != nil {
		return err
	}

	if len(c.Args) != 1 {
		return errors.New("expected one object file")
	}

	p, err := obj.ReadFile(ctx, c.Args[0])
	if err != nil {
		return err
	}

	return execute(ctx, c, cfg, p, nil)
}

func execAct(c *cli.Command) (err error) {
	ctx, cfg, err := setup(c)
	if err != nil {
		return err
	}

	if len(c.Args) != 1 {
		return errors.New("expected one source file")
	}

	u, err := compileFile(ctx, c.Args[0])
	if err != nil {
		return err
	}

	return execute(ctx, c, cfg, u.Program, u.Dir.Names())
}

func execute(ctx context.Context, c *cli.Command, cfg config.Config, p *ir.Program, names map[ir.Addr]string) error {
	opts := vm.Options{
		MaxSteps: cfg.VM.MaxSteps,
		Trace:    cfg.VM.Trace,
	}

	if v := c.Int("max-steps"); v >= 0 {
		opts.MaxSteps = int64(v)
	}

	m, err := vm.Load(ctx, p, opts)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	err = m.Run(ctx)

	if c.Bool("coverage") {
		b := format.Listing{Names: names, Covered: m.Coverage()}.Append(nil, p)
		_, _ = os.Stderr.Write(b)
	}

	if err != nil {
		var re vm.RuntimeError
		if errors.As(err, &re) {
			report(errColor, "%v", re)

			return errors.New("execution failed after %d steps", m.Steps())
		}

		return err
	}

	return nil
}

func dumpAct(c *cli.Command) (err error) {
	ctx, _, err := setup(c)
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		var l format.Listing
		var p *ir.Program

		if strings.HasSuffix(a, srcExt) {
			u, err := compileFile(ctx, a)
			if err != nil {
				return err
			}

			p = u.Program
			l.Names = u.Dir.Names()
		} else {
			p, err = obj.ReadFile(ctx, a)
			if err != nil {
				return err
			}
		}

		fmt.Printf("// %v\n", a)

		err = obj.WriteText(os.Stdout, p)
		if err != nil {
			return errors.Wrap(err, "write text")
		}

		fmt.Printf("\n")

		_, err = os.Stdout.Write(l.Append(nil, p))
		if err != nil {
			return errors.Wrap(err, "write listing")
		}
	}

	return nil
}

func fmtAct(c *cli.Command) (err error) {
	ctx, _, err := setup(c)
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		tree, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		b, err := format.Format(ctx, nil, tree)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		if c.Bool("write") {
			err = os.WriteFile(a, b, 0o644)
			if err != nil {
				return errors.Wrap(err, "write %v", a)
			}

			continue
		}

		_, err = os.Stdout.Write(b)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

// compileFile compiles and reports diagnostics one per line.
func compileFile(ctx context.Context, src string) (*compiler.Unit, error) {
	u, err := compiler.CompileFile(ctx, src)

	if u != nil {
		for _, w := range u.Warnings {
			report(warnColor, "warning: %v", u.Describe(w))
		}
	}

	var ferr *front.Errors
	if u != nil && errors.As(err, &ferr) {
		for _, e := range ferr.List {
			report(errColor, "%v", u.Describe(e))
		}

		return nil, errors.New("%v: %d errors", src, len(ferr.List))
	}

	if err != nil {
		return nil, errors.Wrap(err, "%v", src)
	}

	return u, nil
}

func objPath(src, out, dir string, f obj.Format, many bool) string {
	if out != "" && !many {
		if st, err := os.Stat(out); err != nil || !st.IsDir() {
			return out
		}
	}

	if out != "" {
		dir = out
	}

	base := strings.TrimSuffix(src, srcExt) + f.Ext()

	if dir == "" {
		return base
	}

	return filepath.Join(dir, filepath.Base(base))
}

func report(c *color.Color, f string, args ...any) {
	defer stderr.Unlock()
	stderr.Lock()

	_, _ = c.Fprintf(os.Stderr, f+"\n", args...)
}
