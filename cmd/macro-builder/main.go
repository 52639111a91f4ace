// Command macro-builder regenerates the derived files of a SAS macro library:
// wrapper macros for lua fragments, the generated region of the web service
// templates, one bundle per folder and the combined all.sas.
//
// Run without arguments it builds the current directory.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/bsthun/gut"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"macro-builder/internal/config"
	"macro-builder/internal/meta"
)

// Command holds the global flags and the subcommands.
type Command struct {
	Root           string           `help:"Repository root." default:"." type:"existingdir"`
	Config         string           `help:"Configuration file (default: <root>/macrobuild.yml)."`
	Verbose        bool             `help:"Enable debug logging." short:"v"`
	LenientMarkers bool             `help:"Tolerate malformed web service markers the way the historical build did."`
	Version        kong.VersionFlag `help:"Print version and exit."`

	Build BuildCommand `cmd:"" default:"1" help:"Regenerate wrappers, web services and bundles."`
	Check CheckCommand `cmd:"" help:"Print diffs and fail when generated files are out of date."`
	Plan  PlanCommand  `cmd:"" help:"Print what a build reads and writes."`
	Watch WatchCommand `cmd:"" help:"Rebuild whenever an input changes."`
}

// App is bound into every subcommand's Run.
type App struct {
	Root   string
	Config *config.Config
	Logger *zap.Logger
	Out    io.Writer
}

func newParser(command *Command, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("macro-builder"),
		kong.Description("SAS macro library build pipeline"),
		kong.UsageOnError(),
		kong.Vars{"version": meta.Detect().String()},
	}, options...)
	return kong.New(command, options...)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewApp loads the configuration selected by the global flags.
func (r *Command) NewApp(logger *zap.Logger, out io.Writer) (*App, error) {
	cfg, err := config.Load(r.Root, r.Config)
	if err != nil {
		return nil, err
	}
	if r.LenientMarkers {
		cfg.Webout.Strict = gut.Ptr(false)
	}
	return &App{
		Root:   r.Root,
		Config: cfg,
		Logger: logger,
		Out:    out,
	}, nil
}

func main() {
	command := new(Command)
	parser, err := newParser(command)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logger, err := newLogger(command.Verbose)
	ctx.FatalIfErrorf(err)

	app, err := command.NewApp(logger, os.Stdout)
	if err != nil {
		_ = logger.Sync()
		ctx.FatalIfErrorf(err)
	}

	err = ctx.Run(app)
	_ = logger.Sync()
	ctx.FatalIfErrorf(err)
}
