// Package logmsg defines the host message record that parsers populate.
//
// The pipeline owns message storage; parsers only borrow a [LogMessage] for
// the duration of one parse call. [Message] is a simple in-memory
// implementation used by the CLI and by tests.
package logmsg

import (
	"sort"
	"sync"
)

// LogMessage is the mutable name/value record a parser fills in.
type LogMessage interface {
	Get(name string) (string, bool)
	Set(name, value string)
	Unset(name string)
	Names() []string
}

// Message is a map-backed LogMessage safe for concurrent use.
type Message struct {
	mu     sync.RWMutex
	fields map[string]string
}

// New returns an empty Message.
func New() *Message {
	return &Message{fields: make(map[string]string)}
}

func (m *Message) Get(name string) (string, bool) {
	m.mu.RLock()
	v, ok := m.fields[name]
	m.mu.RUnlock()
	return v, ok
}

func (m *Message) Set(name, value string) {
	m.mu.Lock()
	m.fields[name] = value
	m.mu.Unlock()
}

func (m *Message) Unset(name string) {
	m.mu.Lock()
	delete(m.fields, name)
	m.mu.Unlock()
}

// Names returns the field names in sorted order.
func (m *Message) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns a copy of all fields.
func (m *Message) Fields() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}
