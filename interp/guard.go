package interp

import (
	"context"
	"fmt"

	"github.com/caffeineduck/pyparser/hostfunc"
)

// Guard is proof of exclusive interpreter access. Every operation on guest
// objects is a Guard method. A Guard belongs to the goroutine that
// acquired it and is not safe for concurrent use.
type Guard struct {
	rt       *Runtime
	ctx      context.Context
	funcs    *hostfunc.Registry
	released bool
}

// Release gives up interpreter access. It is safe to call more than once.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	<-g.rt.sem
}

// Bind makes the host functions in r visible to the guest for the
// following requests, ahead of the runtime's base functions. Passing nil
// removes the binding.
func (g *Guard) Bind(r *hostfunc.Registry) {
	g.funcs = r
}

// Import puts path at the front of the guest's module search path and
// imports the named module.
func (g *Guard) Import(path, name string) (*Object, error) {
	resp, err := g.do(Request{Op: OpImport, Path: path, Name: name, Keep: true})
	if err != nil {
		return nil, err
	}
	return newObject(g.rt, resp), nil
}

// GetAttr resolves an attribute of obj.
func (g *Guard) GetAttr(obj *Object, name string) (*Object, error) {
	if err := g.check(obj); err != nil {
		return nil, err
	}
	resp, err := g.do(Request{Op: OpGetAttr, Ref: obj.ref, Name: name, Keep: true})
	if err != nil {
		return nil, err
	}
	return newObject(g.rt, resp), nil
}

// Call invokes fn with positional args and keeps the result.
func (g *Guard) Call(fn *Object, args ...Value) (*Object, error) {
	return g.call(fn, true, args)
}

// Invoke invokes fn like Call but does not keep the result; the returned
// Object only describes it.
func (g *Guard) Invoke(fn *Object, args ...Value) (*Object, error) {
	return g.call(fn, false, args)
}

func (g *Guard) call(fn *Object, keep bool, args []Value) (*Object, error) {
	if err := g.check(fn); err != nil {
		return nil, err
	}
	resp, err := g.do(Request{Op: OpCall, Ref: fn.ref, Args: args, Keep: keep})
	if err != nil {
		return nil, err
	}
	return newObject(g.rt, resp), nil
}

// CallMethod calls obj.name(*args) without keeping the result.
func (g *Guard) CallMethod(obj *Object, name string, args ...Value) (*Object, error) {
	if err := g.check(obj); err != nil {
		return nil, err
	}
	resp, err := g.do(Request{Op: OpCallMethod, Ref: obj.ref, Name: name, Args: args})
	if err != nil {
		return nil, err
	}
	return newObject(g.rt, resp), nil
}

// IsNone reports whether obj is the guest's None.
func (g *Guard) IsNone(obj *Object) bool {
	return obj.none
}

// Truthy reports the guest's bool() of obj at the time it was produced.
// It is only evaluated for results that are not kept (Invoke, CallMethod);
// for kept objects it is always false.
func (g *Guard) Truthy(obj *Object) bool {
	return obj.truthy
}

// Callable reports the guest's callable() of obj.
func (g *Guard) Callable(obj *Object) bool {
	return obj.callable
}

// Free drops the guest's reference to obj. Freeing an object that was
// never kept, or twice, is a no-op.
func (g *Guard) Free(obj *Object) error {
	if obj == nil || !obj.Held() {
		return nil
	}
	if err := g.check(obj); err != nil {
		return err
	}
	obj.freed = true
	_, err := g.do(Request{Op: OpFree, Ref: obj.ref})
	return err
}

func (g *Guard) check(obj *Object) error {
	if obj == nil || obj.rt != g.rt || obj.freed {
		return ErrInvalidObject
	}
	return nil
}

func (g *Guard) do(req Request) (Response, error) {
	if g.released {
		return Response{}, ErrGuardReleased
	}

	resp, err := g.rt.backend.Do(g.ctx, req, []*hostfunc.Registry{g.funcs, g.rt.funcs})
	if err != nil {
		return resp, fmt.Errorf("%s: %w", req.Op, err)
	}
	if !resp.OK {
		return resp, &Exception{Type: resp.Exc, Message: resp.Error, Traceback: resp.Traceback}
	}
	return resp, nil
}
