package interp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/pyparser/hostfunc"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// New compiles lang's interpreter, starts it in session mode and returns a
// Runtime driving it.
func New(ctx context.Context, lang Language, opts ...Option) (*Runtime, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = DefaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	closeAll := func() {
		rt.Close(ctx)
		if cache != nil {
			cache.Close(ctx)
		}
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		closeAll()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	bin, err := lang.Module()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load %s: %w", lang.Name(), err)
	}

	start := time.Now()
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("compile %s: %w", lang.Name(), err)
	}
	Logger().Debug("compiled interpreter",
		zap.String("language", lang.Name()),
		zap.Duration("duration", time.Since(start)))

	funcs := hostfunc.NewRegistry()
	funcs.Register(hostfunc.FuncLog, hostfunc.NewLog(Logger().Named("guest")))
	for name, fn := range cfg.funcs {
		funcs.Register(name, fn)
	}

	s, err := startSession(rt, compiled, lang, cfg)
	if err != nil {
		closeAll()
		return nil, err
	}

	backend := &wasmBackend{runtime: rt, cache: cache, session: s}
	return newRuntime(backend, funcs), nil
}

// wasmBackend runs the guest loop inside a wazero module instance.
type wasmBackend struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	session *session
}

func (b *wasmBackend) Do(ctx context.Context, req Request, funcs []*hostfunc.Registry) (Response, error) {
	return b.session.do(req, funcs)
}

func (b *wasmBackend) Close() error {
	ctx := context.Background()

	var errs []error
	if err := b.session.close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if b.cache != nil {
		if err := b.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type session struct {
	stdin       *io.PipeWriter
	stdinReader *io.PipeReader
	stdout      *sessionOutput
	protocol    *protocol
	cancel      context.CancelFunc

	exited  chan struct{}
	exitErr error

	mu     sync.Mutex
	closed bool
}

func startSession(rt wazero.Runtime, compiled wazero.CompiledModule, lang Language, cfg config) (*session, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &session{
		stdout: newSessionOutput(),
		cancel: cancel,
		exited: make(chan struct{}),
	}
	s.stdinReader, s.stdin = io.Pipe()
	s.protocol = newProtocol(ctx, s.stdin)

	fsConfig := wazero.NewFSConfig()
	for _, dir := range cfg.searchPath {
		abs, err := filepath.Abs(dir)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("search path %q: %w", dir, err)
		}
		fsConfig = fsConfig.WithReadOnlyDirMount(abs, filepath.ToSlash(abs))
	}

	initCode := lang.SessionInit() + lang.WrapCode("")
	moduleConfig := wazero.NewModuleConfig().
		WithStdout(s.stdout).
		WithStderr(s.protocol).
		WithStdin(s.stdinReader).
		WithArgs(lang.Args(initCode)...).
		WithFSConfig(fsConfig).
		WithSysWalltime().
		WithSysNanotime().
		WithName("")

	for k, v := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	go func() {
		_, err := rt.InstantiateModule(ctx, compiled, moduleConfig)
		s.exitErr = err
		s.stdinReader.Close()
		close(s.exited)
		if err != nil {
			Logger().Debug("guest interpreter exited", zap.Error(err))
		}
	}()

	select {
	case <-s.protocol.Ready():
		s.flushOutput()
		return s, nil
	case <-s.exited:
		s.flushOutput()
		cancel()
		return nil, fmt.Errorf("start session: %w", s.exitError())
	case <-time.After(cfg.startTimeout):
		s.close()
		return nil, errors.New("session start timeout")
	}
}

// exitWait bounds how long a failed write waits for the guest to finish
// exiting before reporting it.
const exitWait = 5 * time.Second

// waitExit waits for the guest to exit and returns why it did.
func (s *session) waitExit() error {
	select {
	case <-s.exited:
		return s.exitError()
	case <-time.After(exitWait):
		return ErrGuestExited
	}
}

// exitError reads the exit cause; only call it once exited is closed.
func (s *session) exitError() error {
	if s.exitErr != nil {
		return fmt.Errorf("%w: %v", ErrGuestExited, s.exitErr)
	}
	return ErrGuestExited
}

// do sends one request and waits for its result. There is no timeout: the
// guest loop cannot abandon a request, so neither can the host.
func (s *session) do(req Request, funcs []*hostfunc.Registry) (Response, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Response{}, ErrClosed
	}

	select {
	case <-s.exited:
		return Response{}, s.exitError()
	default:
	}

	cmd, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	s.protocol.begin(funcs)
	defer s.flushOutput()

	if err := s.protocol.send(append(cmd, '\n')); err != nil {
		return Response{}, fmt.Errorf("write request: %v: %w", err, s.waitExit())
	}

	select {
	case resp := <-s.protocol.Result():
		return resp, nil
	case <-s.exited:
		return Response{}, s.exitError()
	}
}

// flushOutput logs whatever the guest printed since the last flush.
func (s *session) flushOutput() {
	if out := s.stdout.Take(); out != "" {
		Logger().Debug("guest stdout", zap.String("output", out))
	}
	if out := s.protocol.TakeStderr(); out != "" {
		Logger().Info("guest stderr", zap.String("output", out))
	}
}

func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// Closing stdin makes the guest loop see EOF and return; cancelling
	// stops a guest that is busy.
	s.stdin.Close()
	s.stdinReader.Close()
	s.cancel()
	<-s.exited
	return nil
}

type sessionOutput struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func newSessionOutput() *sessionOutput {
	return &sessionOutput{}
}

func (o *sessionOutput) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(data)
}

// Take returns and clears the buffered output.
func (o *sessionOutput) Take() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.buf.String()
	o.buf.Reset()
	return s
}

// DefaultCacheDir is where WithDiskCache and the interpreter download live
// unless configured otherwise.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "pyparser")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "pyparser")
	}
	return filepath.Join(os.TempDir(), "pyparser-cache")
}
