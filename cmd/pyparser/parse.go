package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/caffeineduck/pyparser/logmsg"
	"github.com/caffeineduck/pyparser/parser"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse log lines",
	Long: `Parse each input line with a Python parser and print one JSON object
per line with the parse result and the message fields.

Input can be provided via:
  - File argument: pyparser parse --module m --class C access.log
  - Stdin: tail -f access.log | pyparser parse --config parsers.hcl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	addParserFlags(parseCmd.Flags())
	rootCmd.AddCommand(parseCmd)
}

type parseResult struct {
	Input  string            `json:"input"`
	Parsed bool              `json:"parsed"`
	Fields map[string]string `json:"fields"`
	Error  string            `json:"error,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	p, closeParser, err := openParser(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeParser()

	return parseLines(ctx, p, in, cmd.OutOrStdout())
}

// parseLines parses every line of r into a fresh message and writes one
// JSON result per line to w. It stops at the first error that is not a
// Python exception.
func parseLines(ctx context.Context, p *parser.Parser, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		res := parseOne(ctx, p, scanner.Text())
		if err := enc.Encode(res); err != nil {
			return err
		}
		if res.Error != "" {
			return &parser.Error{Kind: parser.ErrParse, Name: p.Class()}
		}
	}
	return scanner.Err()
}

func parseOne(ctx context.Context, p *parser.Parser, input string) parseResult {
	msg := logmsg.New()
	ok, err := p.Parse(ctx, msg, input)
	res := parseResult{Input: input, Parsed: ok, Fields: msg.Fields()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
