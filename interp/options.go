package interp

import (
	"time"

	"github.com/caffeineduck/pyparser/hostfunc"
)

// Option configures a Runtime at creation time.
type Option func(*config)

type config struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = default (4GB)
	searchPath       []string
	env              map[string]string
	startTimeout     time.Duration
	funcs            map[string]hostfunc.Func
}

func defaultConfig() config {
	return config{
		env:          make(map[string]string),
		startTimeout: 30 * time.Second,
		funcs:        make(map[string]hostfunc.Func),
	}
}

// WithDiskCache enables persistent compilation cache for faster startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/pyparser
// or XDG_CACHE_HOME/pyparser.
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to the interpreter.
// Each page is 64KB. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// WithSearchPath mounts host directories read-only into the guest at the
// same absolute paths, so they can be used as import search paths.
func WithSearchPath(dirs ...string) Option {
	return func(c *config) {
		c.searchPath = append(c.searchPath, dirs...)
	}
}

// WithEnv sets an environment variable inside the guest.
func WithEnv(key, value string) Option {
	return func(c *config) {
		c.env[key] = value
	}
}

// WithStartTimeout bounds how long the interpreter may take to become ready.
func WithStartTimeout(d time.Duration) Option {
	return func(c *config) {
		c.startTimeout = d
	}
}

// WithHostFunc registers an additional host function visible to all guest
// code run by the runtime.
func WithHostFunc(name string, fn hostfunc.Func) Option {
	return func(c *config) {
		c.funcs[name] = fn
	}
}
