package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/caffeineduck/pyparser/config"
	"github.com/caffeineduck/pyparser/interp"
	"github.com/caffeineduck/pyparser/language/python"
	"github.com/caffeineduck/pyparser/parser"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:   "pyparser",
	Short: "Run Python log parsers from Go",
	Long: `pyparser - Drive Python log parser classes from a Go pipeline.

A parser is a Python class with a parse(msg, input) method and an optional
init(options) method. The interpreter is RustPython compiled to WebAssembly;
point --python at it or fetch it into the cache directory first.

Parsers are named either with --module/--class or by a parser block in an
HCL file given with --config and --parser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		return setupLogging(level)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("python", "", "Path to the Python WASM interpreter (default: $"+python.EnvWasmPath+" or the cache directory)")
	rootCmd.PersistentFlags().StringSlice("search-path", nil, "Directory to expose for imports (repeatable)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().String("memory", "256mb", "Memory limit: 16mb, 64mb, 256mb, 1gb")
}

// addParserFlags adds the flags naming the parser to build.
func addParserFlags(fs *pflag.FlagSet) {
	fs.String("module", "", "Python module holding the parser class")
	fs.String("class", "", "Parser class name")
	fs.StringToString("option", nil, "Option passed to init (repeatable, key=value)")
	fs.String("config", "", "HCL file with parser blocks")
	fs.String("parser", "", "Parser block to use from --config")
}

func setupLogging(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	interp.SetLogger(logger.Named("interp"))
	parser.SetLogger(logger.Named("parser"))
	return nil
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "16mb":
		return interp.MemoryLimit16MB, nil
	case "64mb":
		return interp.MemoryLimit64MB, nil
	case "256mb":
		return interp.MemoryLimit256MB, nil
	case "1gb":
		return interp.MemoryLimit1GB, nil
	case "", "none":
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid memory limit %q", s)
	}
}

// parserTarget is a parser named on the command line or in a config file.
type parserTarget struct {
	module     string
	class      string
	options    map[string]string
	searchPath []string
	def        *config.Parser
}

func resolveTarget(cmd *cobra.Command) (*parserTarget, error) {
	configPath, _ := cmd.Flags().GetString("config")
	name, _ := cmd.Flags().GetString("parser")
	module, _ := cmd.Flags().GetString("module")
	class, _ := cmd.Flags().GetString("class")
	options, _ := cmd.Flags().GetStringToString("option")
	searchPath, _ := cmd.Flags().GetStringSlice("search-path")

	if configPath == "" {
		if name != "" {
			return nil, fmt.Errorf("--parser requires --config")
		}
		if module == "" || class == "" {
			return nil, fmt.Errorf("--module and --class are required without --config")
		}
		return &parserTarget{module: module, class: class, options: options, searchPath: searchPath}, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if name == "" {
		names := cfg.Names()
		if len(names) != 1 {
			return nil, fmt.Errorf("--parser required, %s defines %d parsers", configPath, len(names))
		}
		name = names[0]
	}
	def, err := cfg.Parser(name)
	if err != nil {
		return nil, err
	}
	return &parserTarget{def: def, options: options, searchPath: append(cfg.SearchPath, searchPath...)}, nil
}

// configure adds the target to b. Command-line options come last and win.
func (t *parserTarget) configure(b *parser.Builder) {
	if t.def != nil {
		t.def.Configure(b)
	} else {
		b.Option(parser.OptionModule, t.module)
		b.Option(parser.OptionClass, t.class)
	}
	for k, v := range t.options {
		b.Option(k, v)
	}
}

func newRuntime(ctx context.Context, cmd *cobra.Command, searchPath []string) (*interp.Runtime, error) {
	wasmPath, _ := cmd.Flags().GetString("python")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	memory, _ := cmd.Flags().GetString("memory")

	pages, err := parseMemoryLimit(memory)
	if err != nil {
		return nil, err
	}

	cacheDir := interp.DefaultCacheDir()
	lang := python.New(cacheDir)
	if wasmPath != "" {
		lang = python.Load(wasmPath)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	opts := []interp.Option{
		interp.WithSearchPath(append([]string{wd}, searchPath...)...),
		interp.WithMemoryLimit(pages),
	}
	if !noCache {
		opts = append(opts, interp.WithDiskCache(cacheDir))
	}
	return interp.New(ctx, lang, opts...)
}

// openParser starts a runtime and builds the parser named by the flags.
// The returned function closes both.
func openParser(ctx context.Context, cmd *cobra.Command) (*parser.Parser, func(), error) {
	target, err := resolveTarget(cmd)
	if err != nil {
		return nil, nil, err
	}

	rt, err := newRuntime(ctx, cmd, target.searchPath)
	if err != nil {
		return nil, nil, fmt.Errorf("start interpreter: %w", err)
	}

	b := parser.NewBuilder(parser.WithRuntime(rt))
	target.configure(b)
	p, err := b.Build(ctx)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}

	return p, func() {
		p.Close()
		rt.Close()
	}, nil
}
