// Package parser builds log message parsers backed by Python classes.
//
// A Builder takes option pairs. The "module" and "class" options name the
// Python class; every other option is passed to the instance's init method
// as a dict of strings:
//
//	b := parser.NewBuilder(parser.WithRuntime(rt))
//	b.Option("module", "myparsers")
//	b.Option("class", "SyslogParser")
//	b.Option("prefix", ".syslog.")
//	p, err := b.Build(ctx)
//
// Build imports the module, resolves the class, instantiates it without
// arguments and calls init(options) when the instance defines init. Each
// step fails with its own error kind (ErrModuleLoad, ErrAttribute,
// ErrInstantiation, ErrInitialization) and nothing is left allocated in
// the interpreter on failure.
//
// Parse calls the instance's parse(msg, input) for one message. The Python
// side sees msg as a pyparser.LogMessage backed by the Go message for the
// duration of the call. A Python exception during parse is logged and the
// message is reported as not parsed; it does not fail the caller.
package parser
