package interp_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caffeineduck/pyparser/hostfunc"
	"github.com/caffeineduck/pyparser/interp"
	"github.com/caffeineduck/pyparser/interp/interptest"
	"github.com/caffeineduck/pyparser/logmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeRuntime(t *testing.T) (*interp.Runtime, *interptest.Fake) {
	t.Helper()
	fake := interptest.New(map[string]*interptest.Module{
		interptest.TestModuleName: interptest.TestModule("/work"),
	})
	rt := interp.NewWithBackend(fake)
	t.Cleanup(func() { rt.Close() })
	return rt, fake
}

func TestGuardImportGetAttrCall(t *testing.T) {
	rt, fake := newFakeRuntime(t)

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()

	mod, err := g.Import("/work", interptest.TestModuleName)
	require.NoError(t, err)
	assert.Equal(t, "module", mod.Type())
	assert.True(t, mod.Held())
	assert.Equal(t, []string{"/work"}, fake.SearchPath())

	class, err := g.GetAttr(mod, "CallableClass")
	require.NoError(t, err)
	assert.True(t, g.Callable(class))

	inst, err := g.Call(class)
	require.NoError(t, err)
	assert.Equal(t, "CallableClass", inst.Type())
	// Kept objects are handles; their bool() is never evaluated.
	assert.False(t, g.Truthy(inst))
	assert.False(t, g.IsNone(inst))
	assert.Equal(t, 3, fake.Held())

	for _, obj := range []*interp.Object{inst, class, mod} {
		require.NoError(t, g.Free(obj))
	}
	assert.Equal(t, 0, fake.Held())
}

func TestGuardExceptions(t *testing.T) {
	rt, _ := newFakeRuntime(t)

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()

	_, err = g.Import("/work", "__missing_module")
	assert.True(t, interp.IsException(err, "ModuleNotFoundError"), "got %v", err)

	mod, err := g.Import("/work", interptest.TestModuleName)
	require.NoError(t, err)

	_, err = g.GetAttr(mod, "Missing")
	assert.True(t, interp.IsException(err, "AttributeError"), "got %v", err)

	obj, err := g.GetAttr(mod, "NotCallableObject")
	require.NoError(t, err)
	assert.False(t, g.Callable(obj))

	_, err = g.Call(obj)
	var exc *interp.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "TypeError", exc.Type)
	assert.Contains(t, exc.Error(), "not callable")
	assert.NotEmpty(t, exc.Traceback)
}

func TestGuardInvokeDoesNotKeep(t *testing.T) {
	rt, fake := newFakeRuntime(t)

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()

	mod, err := g.Import("", interptest.TestModuleName+"_nodir")
	require.Error(t, err)
	assert.Nil(t, mod)

	mod, err = g.Import("/work", interptest.TestModuleName)
	require.NoError(t, err)
	class, err := g.GetAttr(mod, "ExistingParser")
	require.NoError(t, err)

	held := fake.Held()
	res, err := g.Invoke(class)
	require.NoError(t, err)
	assert.False(t, res.Held())
	assert.Equal(t, held, fake.Held())
	assert.NoError(t, g.Free(res))
}

func TestGuardCallMethodWithMessage(t *testing.T) {
	rt, _ := newFakeRuntime(t)

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()

	mod, err := g.Import("/work", interptest.TestModuleName)
	require.NoError(t, err)
	class, err := g.GetAttr(mod, "ParserForImport")
	require.NoError(t, err)
	inst, err := g.Call(class)
	require.NoError(t, err)

	msg := logmsg.New()
	funcs := hostfunc.NewRegistry()
	hostfunc.NewMessageView(42, msg, hostfunc.DefaultMessageConfig()).Register(funcs)
	g.Bind(funcs)

	res, err := g.CallMethod(inst, "parse", interp.Message(42), interp.Str("hello"))
	require.NoError(t, err)
	assert.True(t, g.Truthy(res))

	v, ok := msg.Get("input")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	g.Bind(nil)
	_, err = g.CallMethod(inst, "parse", interp.Message(42), interp.Str("again"))
	assert.True(t, interp.IsException(err, "RuntimeError"), "got %v", err)
}

func TestGuardRejectsForeignAndFreedObjects(t *testing.T) {
	rt1, _ := newFakeRuntime(t)
	rt2, _ := newFakeRuntime(t)

	g1, err := rt1.Acquire(context.Background())
	require.NoError(t, err)
	mod, err := g1.Import("/work", interptest.TestModuleName)
	require.NoError(t, err)
	g1.Release()

	g2, err := rt2.Acquire(context.Background())
	require.NoError(t, err)
	_, err = g2.GetAttr(mod, "ExistingParser")
	assert.ErrorIs(t, err, interp.ErrInvalidObject)
	g2.Release()

	g1, err = rt1.Acquire(context.Background())
	require.NoError(t, err)
	defer g1.Release()
	require.NoError(t, g1.Free(mod))
	require.NoError(t, g1.Free(mod))
	_, err = g1.GetAttr(mod, "ExistingParser")
	assert.ErrorIs(t, err, interp.ErrInvalidObject)
}

func TestGuardReleased(t *testing.T) {
	rt, _ := newFakeRuntime(t)

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	g.Release()
	g.Release()

	_, err = g.Import("/work", interptest.TestModuleName)
	assert.ErrorIs(t, err, interp.ErrGuardReleased)

	// The slot was given back exactly once.
	g2, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	g2.Release()
}

func TestAcquireSerializes(t *testing.T) {
	rt, _ := newFakeRuntime(t)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := rt.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			defer g.Release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestAcquireHonorsContext(t *testing.T) {
	rt, _ := newFakeRuntime(t)

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = rt.Acquire(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestCloseWaitsAndRejects(t *testing.T) {
	rt, _ := newFakeRuntime(t)

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- rt.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned while the guard was held")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()
	require.NoError(t, <-closed)

	_, err = rt.Acquire(context.Background())
	assert.ErrorIs(t, err, interp.ErrClosed)
	assert.NoError(t, rt.Close())
}

func TestInvokeReturnsNone(t *testing.T) {
	fake := interptest.New(map[string]*interptest.Module{
		"logging_module": {Attrs: map[string]any{
			"emit": interptest.Func(func(c *interptest.Call) (any, error) {
				return interptest.None, nil
			}),
		}},
	})
	rt := interp.NewWithBackend(fake)
	defer rt.Close()

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()

	mod, err := g.Import("", "logging_module")
	require.NoError(t, err)
	fn, err := g.GetAttr(mod, "emit")
	require.NoError(t, err)

	res, err := g.Invoke(fn, interp.Str("x"))
	require.NoError(t, err)
	assert.True(t, g.IsNone(res))
}
