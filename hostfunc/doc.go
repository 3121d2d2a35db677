// Package hostfunc provides the Go functions Python code calls back into.
//
// Host functions are registered by name in a [Registry]. A guest call
// carries a function name and a JSON object of arguments; the first
// registry that knows the name serves it (see [Lookup]).
//
// # Built-in Functions
//
// Message access: [MessageView] exposes one borrowed message under a numeric
// handle for the duration of a parse call, with size limits from
// [MessageConfig]. Calls presenting any other handle fail with
// [ErrStaleMessage].
//
//	view := hostfunc.NewMessageView(handle, msg, hostfunc.DefaultMessageConfig())
//	registry := hostfunc.NewRegistry()
//	view.Register(registry)
//
// Logging: [NewLog] routes pyparser.log(level, text) to a zap logger.
package hostfunc
