package parser

import (
	"context"
	"errors"
	"sync/atomic"
	"unicode/utf8"

	"github.com/caffeineduck/pyparser/hostfunc"
	"github.com/caffeineduck/pyparser/interp"
	"github.com/caffeineduck/pyparser/logmsg"
	"go.uber.org/zap"
)

// messageHandles numbers message views across all parsers, so a view kept
// by Python past its call never matches a later one.
var messageHandles atomic.Int64

// Parser calls a Python parser instance once per message. It is safe for
// concurrent use; calls are serialized by the runtime's guard.
type Parser struct {
	rt       *interp.Runtime
	instance *interp.Object
	module   string
	class    string
	msgCfg   hostfunc.MessageConfig

	// closed is only accessed while holding the guard.
	closed bool
}

// Module returns the name of the module the parser class was loaded from.
func (p *Parser) Module() string { return p.module }

// Class returns the parser class name.
func (p *Parser) Class() string { return p.class }

// Parse calls instance.parse(msg, input) and reports the truthiness of its
// result. Python exceptions are logged and reported as (false, nil); an
// error is returned only when the interpreter cannot be reached or input
// cannot be passed to it. input reaches Python as a str, so it must be
// valid UTF-8; other input fails with ErrInvalidInput.
func (p *Parser) Parse(ctx context.Context, msg logmsg.LogMessage, input string) (bool, error) {
	if !utf8.ValidString(input) {
		return false, &Error{Kind: ErrParse, Name: p.class, Err: ErrInvalidInput}
	}

	g, err := p.rt.Acquire(ctx)
	if err != nil {
		return false, &Error{Kind: ErrParse, Name: p.class, Err: err}
	}
	defer g.Release()

	if p.closed {
		return false, &Error{Kind: ErrParse, Name: p.class, Err: ErrClosed}
	}

	view := hostfunc.NewMessageView(messageHandles.Add(1), msg, p.msgCfg)
	funcs := hostfunc.NewRegistry()
	view.Register(funcs)
	g.Bind(funcs)
	defer g.Bind(nil)

	res, err := g.CallMethod(p.instance, ParseMethod, interp.Message(view.Handle()), interp.Str(input))
	if err != nil {
		var exc *interp.Exception
		if errors.As(err, &exc) {
			Logger().Warn("parse raised an exception",
				zap.String("module", p.module),
				zap.String("class", p.class),
				zap.String("exception", exc.Error()),
				zap.String("traceback", exc.Traceback))
			return false, nil
		}
		return false, &Error{Kind: ErrParse, Name: p.class, Err: err}
	}
	return g.Truthy(res), nil
}

// Close releases the Python instance. Parse fails afterwards.
func (p *Parser) Close() error {
	g, err := p.rt.Acquire(context.Background())
	if err != nil {
		if errors.Is(err, interp.ErrClosed) {
			return nil
		}
		return err
	}
	defer g.Release()

	if p.closed {
		return nil
	}
	p.closed = true
	return g.Free(p.instance)
}
