// Package pyparser lets a Go log pipeline hand message parsing to Python
// classes.
//
// # Overview
//
// Python runs as RustPython compiled to WebAssembly inside the Go process.
// One interpreter is shared by all parsers built on it; every access takes
// its guard, so parse calls from many goroutines are serialized.
//
// # Basic Usage
//
//	rt, _ := interp.New(ctx, python.New(interp.DefaultCacheDir()),
//	    interp.WithSearchPath("/opt/parsers"))
//	defer rt.Close()
//
//	b := parser.NewBuilder(parser.WithRuntime(rt), parser.WithPathHint("/opt/parsers"))
//	b.Option("module", "access")
//	b.Option("class", "AccessLogParser")
//	p, err := b.Build(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	msg := logmsg.New()
//	ok, err := p.Parse(ctx, msg, line)
//
// On the Python side a parser is a plain class:
//
//	import pyparser
//
//	class AccessLogParser:
//	    def init(self, options):
//	        self.prefix = options.get("prefix", "")
//
//	    def parse(self, msg, input):
//	        msg[self.prefix + "line"] = input
//	        return True
//
// # Packages
//
//   - parser: builder and parser
//   - interp: interpreter runtime, guard and object handles
//   - interp/interptest: in-process interpreter stand-in for tests
//   - hostfunc: host functions callable from Python
//   - logmsg: the message record parsers fill in
//   - config: HCL parser definitions
//   - language/python: the RustPython adapter
package pyparser
