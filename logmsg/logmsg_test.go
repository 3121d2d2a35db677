package logmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageSetGetUnset(t *testing.T) {
	m := New()

	_, ok := m.Get("HOST")
	assert.False(t, ok)

	m.Set("HOST", "web-1")
	m.Set("PROGRAM", "nginx")

	v, ok := m.Get("HOST")
	assert.True(t, ok)
	assert.Equal(t, "web-1", v)
	assert.Equal(t, []string{"HOST", "PROGRAM"}, m.Names())

	m.Unset("HOST")
	_, ok = m.Get("HOST")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"PROGRAM": "nginx"}, m.Fields())
}

func TestMessageFieldsIsCopy(t *testing.T) {
	m := New()
	m.Set("a", "1")

	fields := m.Fields()
	fields["a"] = "changed"

	v, _ := m.Get("a")
	assert.Equal(t, "1", v)
}
