package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/caffeineduck/pyparser/interp"
	"github.com/caffeineduck/pyparser/interp/interptest"
	"github.com/caffeineduck/pyparser/parser"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// newFakeParser builds class from the fixture module on an in-process
// interpreter stand-in.
func newFakeParser(t *testing.T, class string, options ...string) *parser.Parser {
	t.Helper()
	fake := interptest.New(map[string]*interptest.Module{
		interptest.TestModuleName: interptest.TestModule(""),
	})
	rt := interp.NewWithBackend(fake)
	t.Cleanup(func() { rt.Close() })

	b := parser.NewBuilder(parser.WithRuntime(rt), parser.WithPathHint("/work"))
	b.Option(parser.OptionModule, interptest.TestModuleName)
	b.Option(parser.OptionClass, class)
	for i := 0; i+1 < len(options); i += 2 {
		b.Option(options[i], options[i+1])
	}
	p, err := b.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}
