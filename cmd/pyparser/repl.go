package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caffeineduck/pyparser/parser"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactively parse lines",
	Long: `Start an interactive session that parses each entered line and prints
the result and the resulting message fields.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	RunE: runRepl,
}

func init() {
	addParserFlags(replCmd.Flags())
	replCmd.Flags().String("history", "", "History file path (default: ~/.pyparser_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".pyparser_history")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, closeParser, err := openParser(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeParser()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "parse> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(os.Stderr, "pyparser %s.%s (type 'exit' to quit, Ctrl+D to exit)\n", p.Module(), p.Class())
	return repl(ctx, p, rl, rl.Stdout())
}

type lineReader interface {
	Readline() (string, error)
}

func repl(ctx context.Context, p *parser.Parser, rl lineReader, w io.Writer) error {
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(w)
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			return nil
		}

		res := parseOne(ctx, p, line)
		if res.Error != "" {
			fmt.Fprintf(w, "error: %s\n", res.Error)
			continue
		}
		writeResult(w, res)
	}
}

func writeResult(w io.Writer, res parseResult) {
	if !res.Parsed {
		fmt.Fprintln(w, "not parsed")
	}
	names := make([]string, 0, len(res.Fields))
	for name := range res.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %q\n", name, res.Fields[name])
	}
}
