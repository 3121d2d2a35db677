package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caffeineduck/pyparser/hostfunc"
	"github.com/caffeineduck/pyparser/interp"
	"github.com/caffeineduck/pyparser/language/python"
	"go.uber.org/zap"
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRuntime builds on rt instead of the process-wide default runtime.
func WithRuntime(rt *interp.Runtime) BuilderOption {
	return func(b *Builder) {
		b.rt = rt
	}
}

// WithPathHint sets the directory put on the module search path. It
// defaults to the working directory.
func WithPathHint(dir string) BuilderOption {
	return func(b *Builder) {
		b.pathHint = dir
	}
}

// WithMessageConfig sets the limits applied to message writes from Python.
func WithMessageConfig(cfg hostfunc.MessageConfig) BuilderOption {
	return func(b *Builder) {
		b.msgCfg = cfg
	}
}

type builderState int

const (
	stateNew builderState = iota
	stateBuilt
	stateFailed
)

// Builder collects options and builds a Parser once.
type Builder struct {
	rt       *interp.Runtime
	pathHint string
	msgCfg   hostfunc.MessageConfig
	options  Options
	state    builderState
}

// NewBuilder returns a Builder with no options set.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{msgCfg: hostfunc.DefaultMessageConfig()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Option records a key/value pair. It has no effect once Build was called.
func (b *Builder) Option(key, value string) {
	if b.state != stateNew {
		Logger().Debug("ignoring option after build", zap.String("key", key))
		return
	}
	b.options.Add(key, value)
}

// Build resolves the module and class, instantiates the class and runs its
// initializer. A Builder builds at most once.
func (b *Builder) Build(ctx context.Context) (*Parser, error) {
	if b.state != stateNew {
		return nil, ErrBuilderUsed
	}
	b.state = stateFailed

	cfg, err := b.options.config()
	if err != nil {
		return nil, err
	}

	pathHint := b.pathHint
	if pathHint == "" {
		if pathHint, err = os.Getwd(); err != nil {
			return nil, &Error{Kind: ErrModuleLoad, Name: cfg.Module, Err: err}
		}
	}

	rt := b.rt
	if rt == nil {
		if rt, err = DefaultRuntime(); err != nil {
			return nil, &Error{Kind: ErrUnavailable, Name: cfg.Module, Err: err}
		}
	}

	g, err := rt.Acquire(ctx)
	if err != nil {
		return nil, &Error{Kind: ErrUnavailable, Name: cfg.Module, Err: err}
	}
	defer g.Release()

	inst, err := LoadAndInit(g, pathHint, cfg.Module, cfg.Class, cfg.Init)
	if err != nil {
		Logger().Debug("parser build failed",
			zap.String("module", cfg.Module),
			zap.String("class", cfg.Class),
			zap.Error(err))
		return nil, err
	}

	b.state = stateBuilt
	Logger().Info("parser built",
		zap.String("module", cfg.Module),
		zap.String("class", cfg.Class),
		zap.String("path", pathHint))

	return &Parser{
		rt:       rt,
		instance: inst,
		module:   cfg.Module,
		class:    cfg.Class,
		msgCfg:   b.msgCfg,
	}, nil
}

var (
	defaultRuntime     *interp.Runtime
	defaultRuntimeErr  error
	defaultRuntimeOnce sync.Once
)

// DefaultRuntime returns the process-wide Python runtime, starting it on
// first use. It mounts the working directory and every PYTHONPATH entry
// for imports.
func DefaultRuntime() (*interp.Runtime, error) {
	defaultRuntimeOnce.Do(func() {
		dirs := searchPathFromEnv()
		cacheDir := interp.DefaultCacheDir()
		defaultRuntime, defaultRuntimeErr = interp.New(context.Background(),
			python.New(cacheDir),
			interp.WithSearchPath(dirs...),
			interp.WithDiskCache(cacheDir),
		)
	})
	return defaultRuntime, defaultRuntimeErr
}

func searchPathFromEnv() []string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	for _, dir := range filepath.SplitList(os.Getenv("PYTHONPATH")) {
		if strings.TrimSpace(dir) != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
