// Package interp hosts a Python interpreter compiled to WebAssembly and
// serializes all access to it.
//
// # Overview
//
// A [Runtime] owns one long-lived guest interpreter running a request loop.
// Guest objects never cross into Go; the guest keeps them in a reference
// table and Go holds [Object] handles naming table slots.
//
// # The Guard
//
// The interpreter may only be touched by one goroutine at a time.
// [Runtime.Acquire] returns a [Guard], and every object operation is a
// Guard method, so code without a guard cannot reach the interpreter:
//
//	g, err := rt.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer g.Release()
//
//	mod, err := g.Import(dir, "my_parsers")
//	if err != nil {
//	    return err
//	}
//	defer g.Free(mod)
//
// # Errors
//
// Python exceptions surface as [*Exception] carrying the exception type,
// message and formatted traceback. Transport failures wrap [ErrGuestExited]
// or [ErrClosed].
//
// # Testing
//
// Package interptest provides an in-process [Backend] for tests that
// should not depend on a WASM build of the interpreter.
package interp
