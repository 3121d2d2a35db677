package interp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/pyparser/hostfunc"
	"go.uber.org/zap"
)

// Protocol markers written by the guest bootstrap on stderr.
// Host call: \x00PYP:{json}\x00, request result: \x00PYP_RESULT:{json}\x00.
const (
	protocolPrefix       = "\x00PYP:"
	protocolResultPrefix = "\x00PYP_RESULT:"
	protocolSuffix       = "\x00"
	protocolReadySignal  = "\x00PYP_READY\x00"
)

type messageType int

const (
	messageNone messageType = iota
	messageCall
	messageResult
	messageReady
)

var protocolMarkers = []struct {
	prefix string
	typ    messageType
}{
	{protocolPrefix, messageCall},
	{protocolResultPrefix, messageResult},
	{protocolReadySignal, messageReady},
}

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// findNextMessage returns the position and type of the earliest protocol
// marker in content.
func findNextMessage(content string) (int, messageType) {
	best, bestType := -1, messageNone
	for _, m := range protocolMarkers {
		if idx := strings.Index(content, m.prefix); idx != -1 && (best == -1 || idx < best) {
			best, bestType = idx, m.typ
		}
	}
	return best, bestType
}

// extractMessage splits a framed message starting at idx into its payload
// and whatever follows the frame. ok is false while the frame is incomplete.
func extractMessage(content string, idx int, prefix string) (payload, remaining string, ok bool) {
	start := idx + len(prefix)
	end := strings.Index(content[start:], protocolSuffix)
	if end == -1 {
		return "", content[idx:], false
	}
	return content[start : start+end], content[start+end+len(protocolSuffix):], true
}

// partialMarker returns the length of a trailing fragment of content that
// could be the start of a protocol marker.
func partialMarker(content string) int {
	idx := strings.LastIndex(content, "\x00")
	if idx == -1 {
		return 0
	}
	tail := content[idx:]
	for _, m := range protocolMarkers {
		if strings.HasPrefix(m.prefix, tail) {
			return len(tail)
		}
	}
	return 0
}

// protocol intercepts guest stderr. Ordinary output is buffered for the
// log; protocol frames signal readiness, deliver results and trigger host
// function calls.
type protocol struct {
	ctx         context.Context
	stdinWriter *io.PipeWriter

	buf        bytes.Buffer
	realStderr bytes.Buffer

	funcs    []*hostfunc.Registry
	readyCh  chan struct{}
	resultCh chan Response
	ready    bool

	mu      sync.Mutex
	writeMu sync.Mutex
}

func newProtocol(ctx context.Context, stdinWriter *io.PipeWriter) *protocol {
	return &protocol{
		ctx:         ctx,
		stdinWriter: stdinWriter,
		readyCh:     make(chan struct{}),
		resultCh:    make(chan Response, 1),
	}
}

func (p *protocol) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		content := p.buf.String()
		idx, msgType := findNextMessage(content)
		if msgType == messageNone {
			keep := partialMarker(content)
			p.realStderr.WriteString(content[:len(content)-keep])
			p.buf.Reset()
			p.buf.WriteString(content[len(content)-keep:])
			break
		}

		p.realStderr.WriteString(content[:idx])

		if msgType == messageReady {
			p.buf.Reset()
			p.buf.WriteString(content[idx+len(protocolReadySignal):])
			if !p.ready {
				p.ready = true
				close(p.readyCh)
			}
			continue
		}

		prefix := protocolPrefix
		if msgType == messageResult {
			prefix = protocolResultPrefix
		}
		payload, remaining, ok := extractMessage(content, idx, prefix)
		p.buf.Reset()
		p.buf.WriteString(remaining)
		if !ok {
			break
		}

		if msgType == messageResult {
			p.handleResult(payload)
		} else {
			p.handleCall(payload)
		}
	}

	return len(data), nil
}

func (p *protocol) handleResult(payload string) {
	var resp Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		resp = Response{Exc: "ProtocolError", Error: "invalid result format: " + err.Error()}
	}
	select {
	case p.resultCh <- resp:
	default:
		Logger().Warn("dropping unexpected guest result", zap.String("payload", payload))
	}
}

func (p *protocol) handleCall(payload string) {
	var req callRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		go p.respond(callResponse{Error: "invalid call format"})
		return
	}

	funcs := p.funcs
	// Execute and respond in goroutine to avoid blocking Write().
	go func() {
		p.respond(p.executeCall(req, funcs))
	}()
}

func (p *protocol) executeCall(req callRequest, funcs []*hostfunc.Registry) callResponse {
	fn, ok := hostfunc.Lookup(req.Fn, funcs...)
	if !ok {
		return callResponse{Error: "unknown function: " + req.Fn}
	}

	result, err := fn(p.ctx, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

func (p *protocol) respond(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal response"}`)
	}
	p.send(append(data, '\n'))
}

// send writes one line to guest stdin.
func (p *protocol) send(line []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.stdinWriter.Write(line)
	return err
}

// begin prepares for a new request: installs its host functions and drops
// any stale result.
func (p *protocol) begin(funcs []*hostfunc.Registry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.funcs = funcs
	select {
	case <-p.resultCh:
	default:
	}
}

func (p *protocol) Ready() <-chan struct{} {
	return p.readyCh
}

func (p *protocol) Result() <-chan Response {
	return p.resultCh
}

// TakeStderr returns and clears the buffered non-protocol stderr output.
func (p *protocol) TakeStderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.realStderr.String()
	p.realStderr.Reset()
	return s
}
