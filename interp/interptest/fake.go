// Package interptest provides an in-process stand-in for the guest
// interpreter, so code built on interp can be tested without a WASM build
// of Python.
//
// A Fake serves the same requests as the guest bootstrap over a small Go
// object model: modules hold attributes, classes produce instances,
// instances expose methods. Values returned from Go functions follow
// Python truthiness: None, False, 0, "" and empty dicts are falsy.
package interptest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/caffeineduck/pyparser/hostfunc"
	"github.com/caffeineduck/pyparser/interp"
)

// None is the guest's None.
var None = noneType{}

type noneType struct{}

// Module is an importable module.
type Module struct {
	// Dir is the directory the module lives in. Import only finds it when
	// Dir is on the search path; an empty Dir is always found.
	Dir string
	// Err, when set, is raised by the import itself.
	Err   *Raise
	Attrs map[string]any
}

// Class is a callable producing instances.
type Class struct {
	Name string
	New  func() *Instance
}

// Instance is a class instance. Attrs holds non-method attributes.
type Instance struct {
	Class   string
	Methods map[string]Func
	Attrs   map[string]any
	// State is free for methods to use.
	State map[string]string
	// Bool, when set, is the instance's __bool__. It may raise.
	Bool func() (bool, error)
}

// Func is a callable. Returning a *Raise raises that exception.
type Func func(c *Call) (any, error)

type boundMethod struct {
	name string
	fn   Func
	self *Instance
}

// Raise is a Python exception raised by fake code.
type Raise struct {
	Type    string
	Message string
}

func (r *Raise) Error() string {
	return r.Type + ": " + r.Message
}

// Call carries the arguments of one guest call.
type Call struct {
	Self *Instance
	Args []any

	ctx   context.Context
	funcs []*hostfunc.Registry
}

// Str returns argument i as a string.
func (c *Call) Str(i int) string {
	if i < len(c.Args) {
		if s, ok := c.Args[i].(string); ok {
			return s
		}
	}
	return ""
}

// Dict returns argument i as a dict.
func (c *Call) Dict(i int) map[string]string {
	if i < len(c.Args) {
		if d, ok := c.Args[i].(map[string]string); ok {
			return d
		}
	}
	return nil
}

// Message returns argument i as a message proxy.
func (c *Call) Message(i int) *MessageProxy {
	if i < len(c.Args) {
		if m, ok := c.Args[i].(*MessageProxy); ok {
			return m
		}
	}
	return nil
}

// MessageProxy is the fake counterpart of the guest's LogMessage class. It
// reaches the host message through the same host functions.
type MessageProxy struct {
	handle int64
	call   *Call
}

func (m *MessageProxy) invoke(fn string, args map[string]any) (any, error) {
	f, ok := hostfunc.Lookup(fn, m.call.funcs...)
	if !ok {
		return nil, &Raise{Type: "RuntimeError", Message: "unknown function: " + fn}
	}
	// Handles cross the wire as JSON numbers.
	args["msg"] = float64(m.handle)
	v, err := f(m.call.ctx, args)
	if err != nil {
		return nil, &Raise{Type: "RuntimeError", Message: err.Error()}
	}
	return v, nil
}

// Get reads a field; the bool reports whether it is set.
func (m *MessageProxy) Get(name string) (string, bool, error) {
	v, err := m.invoke(hostfunc.FuncMessageGet, map[string]any{"name": name})
	if err != nil || v == nil {
		return "", false, err
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *MessageProxy) Set(name, value string) error {
	_, err := m.invoke(hostfunc.FuncMessageSet, map[string]any{"name": name, "value": value})
	return err
}

func (m *MessageProxy) Unset(name string) error {
	_, err := m.invoke(hostfunc.FuncMessageUnset, map[string]any{"name": name})
	return err
}

// Fake is an interp.Backend over the fake object model.
type Fake struct {
	mu       sync.Mutex
	modules  map[string]*Module
	path     []string
	objects  map[int64]any
	next     int64
	closed   bool
	requests []interp.Request
}

// New returns a Fake that can import the given modules by name.
func New(modules map[string]*Module) *Fake {
	f := &Fake{
		modules: make(map[string]*Module),
		objects: make(map[int64]any),
	}
	for name, m := range modules {
		f.modules[name] = m
	}
	return f
}

// Held returns the number of objects in the reference table.
func (f *Fake) Held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// SearchPath returns the current search path, most recent first.
func (f *Fake) SearchPath() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.path...)
}

// Requests returns every request served so far.
func (f *Fake) Requests() []interp.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interp.Request(nil), f.requests...)
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.objects = make(map[int64]any)
	return nil
}

// Do serves one request like the guest bootstrap does.
func (f *Fake) Do(ctx context.Context, req interp.Request, funcs []*hostfunc.Registry) (interp.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return interp.Response{}, interp.ErrGuestExited
	}
	f.requests = append(f.requests, req)

	result, err := f.serve(ctx, req, funcs)
	if err != nil {
		return raised(err), nil
	}

	resp, err := describe(result, req.Keep)
	if err != nil {
		return raised(err), nil
	}
	if req.Keep {
		f.next++
		f.objects[f.next] = result
		resp.Ref = f.next
	}
	return resp, nil
}

func (f *Fake) serve(ctx context.Context, req interp.Request, funcs []*hostfunc.Registry) (any, error) {
	switch req.Op {
	case interp.OpImport:
		return f.importModule(req.Path, req.Name)
	case interp.OpGetAttr:
		obj, err := f.lookup(req.Ref)
		if err != nil {
			return nil, err
		}
		return getattr(obj, req.Name)
	case interp.OpCall:
		obj, err := f.lookup(req.Ref)
		if err != nil {
			return nil, err
		}
		return f.call(ctx, obj, req.Args, funcs)
	case interp.OpCallMethod:
		obj, err := f.lookup(req.Ref)
		if err != nil {
			return nil, err
		}
		method, err := getattr(obj, req.Name)
		if err != nil {
			return nil, err
		}
		return f.call(ctx, method, req.Args, funcs)
	case interp.OpFree:
		delete(f.objects, req.Ref)
		return None, nil
	default:
		return nil, &Raise{Type: "ValueError", Message: "unknown op: " + req.Op}
	}
}

func (f *Fake) importModule(path, name string) (any, error) {
	if path != "" && !contains(f.path, path) {
		f.path = append([]string{path}, f.path...)
	}
	m, ok := f.modules[name]
	if !ok || (m.Dir != "" && !contains(f.path, m.Dir)) {
		return nil, &Raise{Type: "ModuleNotFoundError", Message: fmt.Sprintf("No module named '%s'", name)}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m, nil
}

func (f *Fake) lookup(ref int64) (any, error) {
	obj, ok := f.objects[ref]
	if !ok {
		return nil, &Raise{Type: "KeyError", Message: fmt.Sprintf("unknown reference %d", ref)}
	}
	return obj, nil
}

func (f *Fake) call(ctx context.Context, obj any, args []interp.Value, funcs []*hostfunc.Registry) (any, error) {
	c := &Call{ctx: ctx, funcs: funcs}
	for _, a := range args {
		switch a.Kind {
		case interp.KindStr:
			c.Args = append(c.Args, a.Str)
		case interp.KindDict:
			d := make(map[string]string, len(a.Dict))
			for k, v := range a.Dict {
				d[k] = v
			}
			c.Args = append(c.Args, d)
		case interp.KindMsg:
			c.Args = append(c.Args, &MessageProxy{handle: a.Msg, call: c})
		case interp.KindRef:
			v, err := f.lookup(a.Ref)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, v)
		}
	}

	switch fn := obj.(type) {
	case *Class:
		if len(c.Args) > 0 {
			return nil, &Raise{Type: "TypeError", Message: fn.Name + "() takes no arguments"}
		}
		if fn.New == nil {
			return &Instance{Class: fn.Name}, nil
		}
		inst := fn.New()
		inst.Class = fn.Name
		return inst, nil
	case boundMethod:
		c.Self = fn.self
		return fn.fn(c)
	case Func:
		return fn(c)
	default:
		return nil, &Raise{Type: "TypeError", Message: fmt.Sprintf("'%s' object is not callable", typeName(obj))}
	}
}

func getattr(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case *Module:
		if v, ok := o.Attrs[name]; ok {
			return v, nil
		}
		return nil, &Raise{Type: "AttributeError", Message: fmt.Sprintf("module has no attribute '%s'", name)}
	case *Instance:
		if fn, ok := o.Methods[name]; ok {
			return boundMethod{name: name, fn: fn, self: o}, nil
		}
		if v, ok := o.Attrs[name]; ok {
			return v, nil
		}
	}
	return nil, &Raise{Type: "AttributeError", Message: fmt.Sprintf("'%s' object has no attribute '%s'", typeName(obj), name)}
}

func raised(err error) interp.Response {
	var raise *Raise
	if !errors.As(err, &raise) {
		raise = &Raise{Type: "RuntimeError", Message: err.Error()}
	}
	return interp.Response{
		Exc:       raise.Type,
		Error:     raise.Message,
		Traceback: "Traceback (most recent call last):\n" + raise.Error() + "\n",
	}
}

// describe mirrors the guest: truthiness is only computed for results
// that are not kept.
func describe(v any, keep bool) (interp.Response, error) {
	resp := interp.Response{OK: true, Type: typeName(v)}
	switch v.(type) {
	case nil, noneType:
		resp.None = true
	case *Class, boundMethod, Func:
		resp.Callable = true
	}
	if keep {
		return resp, nil
	}
	truthy, err := truthiness(v)
	if err != nil {
		return interp.Response{}, err
	}
	resp.Truthy = truthy
	return resp, nil
}

func truthiness(v any) (bool, error) {
	switch x := v.(type) {
	case nil, noneType:
		return false, nil
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case string:
		return x != "", nil
	case map[string]string:
		return len(x) > 0, nil
	case *Instance:
		if x.Bool != nil {
			return x.Bool()
		}
	}
	return true, nil
}

func typeName(v any) string {
	switch x := v.(type) {
	case nil, noneType:
		return "NoneType"
	case bool:
		return "bool"
	case int:
		return "int"
	case string:
		return "str"
	case map[string]string:
		return "dict"
	case *Module:
		return "module"
	case *Class:
		return "type"
	case *Instance:
		return x.Class
	case boundMethod:
		return "method"
	case Func:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
