package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caffeineduck/pyparser/logmsg"
	"github.com/caffeineduck/pyparser/parser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for parsing",
	Long: `Start an HTTP server that parses messages with one Python parser.

Endpoints:
  POST   /parse    Parse {"input":"...","fields":{...}}, returns the result
  GET    /health   Health check`,
	RunE: runServe,
}

func init() {
	addParserFlags(serveCmd.Flags())
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "Maximum wait for the interpreter per request")
	serveCmd.Flags().Int64("max-body", 1024*1024, "Max request body size")
	rootCmd.AddCommand(serveCmd)
}

type parseRequest struct {
	Input  string            `json:"input"`
	Fields map[string]string `json:"fields,omitempty"`
}

type parseResponse struct {
	Parsed     bool              `json:"parsed"`
	Fields     map[string]string `json:"fields"`
	DurationMs int64             `json:"duration_ms"`
}

type server struct {
	parser  *parser.Parser
	timeout time.Duration
	maxBody int64
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /parse", s.handleParse)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func (s *server) handleParse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg := logmsg.New()
	for k, v := range req.Fields {
		msg.Set(k, v)
	}

	start := time.Now()
	ok, err := s.parser.Parse(ctx, msg, req.Input)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(parseResponse{
		Parsed:     ok,
		Fields:     msg.Fields(),
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeParser, err := openParser(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeParser()

	s := &server{parser: p, timeout: timeout, maxBody: maxBody}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		parser.Logger().Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
