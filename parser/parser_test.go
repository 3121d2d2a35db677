package parser_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/pyparser/interp"
	"github.com/caffeineduck/pyparser/logmsg"
	"github.com/caffeineduck/pyparser/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func buildParser(t *testing.T, rt *interp.Runtime, class string) *parser.Parser {
	t.Helper()
	p, err := newBuilder(rt, class).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	parser.SetLogger(zap.New(core))
	t.Cleanup(func() { parser.SetLogger(zap.NewNop()) })
	return logs
}

func TestParse(t *testing.T) {
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "ExistingParser")

	ok, err := p.Parse(context.Background(), logmsg.New(), "input")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseWritesMessage(t *testing.T) {
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "ParserForImport")

	msg := logmsg.New()
	ok, err := p.Parse(context.Background(), msg, "test-input")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"input": "test-input"}, msg.Fields())
}

func TestParseFalsyResult(t *testing.T) {
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "RejectingParser")

	ok, err := p.Parse(context.Background(), logmsg.New(), "input")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseExceptionIsContained(t *testing.T) {
	logs := observeLogs(t)
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "RaisingParser")

	ok, err := p.Parse(context.Background(), logmsg.New(), "bad line")
	require.NoError(t, err)
	assert.False(t, ok)

	warnings := logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, "RaisingParser", fields["class"])
	assert.Contains(t, fields["exception"], "ValueError")
	assert.Contains(t, fields["traceback"], "cannot parse bad line")

	// The parser stays usable.
	ok, err = p.Parse(context.Background(), logmsg.New(), "again")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseResultTruthinessRaises(t *testing.T) {
	logs := observeLogs(t)
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "RaisingLenParser")

	ok, err := p.Parse(context.Background(), logmsg.New(), "input")
	require.NoError(t, err)
	assert.False(t, ok)

	warnings := logs.FilterMessage("parse raised an exception").All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].ContextMap()["exception"], "no length")
}

func TestParseMissingMethod(t *testing.T) {
	logs := observeLogs(t)
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "ClassWithInitMethod")

	ok, err := p.Parse(context.Background(), logmsg.New(), "input")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("parse raised an exception").Len())
}

func TestParseConcurrent(t *testing.T) {
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "ParserForImport")

	const workers, calls = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*calls)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				msg := logmsg.New()
				input := fmt.Sprintf("%d-%d", w, i)
				ok, err := p.Parse(context.Background(), msg, input)
				if err != nil || !ok {
					errs <- fmt.Errorf("parse %s: ok=%v err=%v", input, ok, err)
					continue
				}
				if v, _ := msg.Get("input"); v != input {
					errs <- fmt.Errorf("parse %s wrote %q", input, v)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestParseWaitsForGuard(t *testing.T) {
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "ExistingParser")

	g, err := rt.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err := p.Parse(ctx, logmsg.New(), "input")
	assert.False(t, ok)
	assert.ErrorIs(t, err, parser.ErrParse)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g.Release()
	ok, err = p.Parse(context.Background(), logmsg.New(), "input")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseAfterClose(t *testing.T) {
	rt, fake := newFakeRuntime(t)
	p := buildParser(t, rt, "ExistingParser")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 0, fake.Held())

	_, err := p.Parse(context.Background(), logmsg.New(), "input")
	assert.ErrorIs(t, err, parser.ErrParse)
	assert.ErrorIs(t, err, parser.ErrClosed)
}

func TestParseClosedRuntime(t *testing.T) {
	rt, _ := newFakeRuntime(t)
	p := buildParser(t, rt, "ExistingParser")
	require.NoError(t, rt.Close())

	_, err := p.Parse(context.Background(), logmsg.New(), "input")
	assert.ErrorIs(t, err, parser.ErrParse)
	assert.ErrorIs(t, err, interp.ErrClosed)

	assert.NoError(t, p.Close())
}

func TestParseMessageViewIsPerCall(t *testing.T) {
	rt, fake := newFakeRuntime(t)
	p := buildParser(t, rt, "ParserForImport")

	for i := 0; i < 2; i++ {
		_, err := p.Parse(context.Background(), logmsg.New(), "x")
		require.NoError(t, err)
	}

	var handles []int64
	for _, req := range fake.Requests() {
		if req.Op == interp.OpCallMethod {
			handles = append(handles, req.Args[0].Msg)
		}
	}
	require.Len(t, handles, 2)
	assert.NotEqual(t, handles[0], handles[1])
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	rt, fake := newFakeRuntime(t)
	p := buildParser(t, rt, "ParserForImport")
	before := len(fake.Requests())

	msg := logmsg.New()
	ok, err := p.Parse(context.Background(), msg, "bad \xff byte")
	assert.False(t, ok)
	assert.ErrorIs(t, err, parser.ErrParse)
	assert.ErrorIs(t, err, parser.ErrInvalidInput)
	assert.Empty(t, msg.Fields())
	assert.Equal(t, before, len(fake.Requests()))
}
