package interp

import (
	"context"

	"github.com/caffeineduck/pyparser/hostfunc"
)

// Backend carries requests to a guest interpreter. A Backend is only ever
// driven by a goroutine holding the runtime's Guard, so implementations see
// at most one request at a time.
type Backend interface {
	// Do sends req and waits for the guest's answer. Host functions the
	// guest calls while serving req are resolved in funcs, in order.
	Do(ctx context.Context, req Request, funcs []*hostfunc.Registry) (Response, error)
	Close() error
}

// Request operations understood by the guest loop.
const (
	OpImport     = "import"
	OpGetAttr    = "getattr"
	OpCall       = "call"
	OpCallMethod = "call_method"
	OpFree       = "free"
)

// Request is one command to the guest.
type Request struct {
	Op   string  `json:"op"`
	Ref  int64   `json:"ref,omitempty"`
	Name string  `json:"name,omitempty"`
	Path string  `json:"path,omitempty"`
	Args []Value `json:"args,omitempty"`
	// Keep stores the result in the guest reference table.
	Keep bool `json:"keep,omitempty"`
}

// Value kinds.
const (
	KindRef  = "ref"
	KindStr  = "str"
	KindDict = "dict"
	KindMsg  = "msg"
)

// Value is a call argument.
type Value struct {
	Kind string            `json:"kind"`
	Ref  int64             `json:"ref,omitempty"`
	Str  string            `json:"str,omitempty"`
	Dict map[string]string `json:"dict,omitempty"`
	Msg  int64             `json:"msg,omitempty"`
}

// Ref passes a held object.
func Ref(o *Object) Value {
	return Value{Kind: KindRef, Ref: o.ref}
}

// Str passes a guest str.
func Str(s string) Value {
	return Value{Kind: KindStr, Str: s}
}

// Dict passes a fresh guest dict[str, str] built from m.
func Dict(m map[string]string) Value {
	return Value{Kind: KindDict, Dict: m}
}

// Message passes a message proxy bound to handle.
func Message(handle int64) Value {
	return Value{Kind: KindMsg, Msg: handle}
}

// Response is the guest's answer. On success it describes the resulting
// object; Ref is zero when the result was not kept.
type Response struct {
	OK        bool   `json:"ok"`
	Ref       int64  `json:"ref,omitempty"`
	Type      string `json:"type,omitempty"`
	None      bool   `json:"none,omitempty"`
	Truthy    bool   `json:"truthy,omitempty"`
	Callable  bool   `json:"callable,omitempty"`
	Exc       string `json:"exc,omitempty"`
	Error     string `json:"error,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}
