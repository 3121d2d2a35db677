package hostfunc

import (
	"context"
	"errors"
	"fmt"

	"github.com/caffeineduck/pyparser/logmsg"
)

// Host function names for the message accessors.
const (
	FuncMessageGet   = "logmsg_get"
	FuncMessageSet   = "logmsg_set"
	FuncMessageUnset = "logmsg_unset"
	FuncMessageNames = "logmsg_names"
)

// ErrStaleMessage is returned for calls presenting a handle other than the
// view's, such as a view Python kept after its parse call returned.
var ErrStaleMessage = errors.New("message view is no longer valid")

// MessageConfig limits what guest code may write into a message.
type MessageConfig struct {
	MaxNameSize  int
	MaxValueSize int
	MaxFields    int
}

// DefaultMessageConfig returns the limits used unless a builder sets its own.
func DefaultMessageConfig() MessageConfig {
	return MessageConfig{
		MaxNameSize:  256,
		MaxValueSize: 64 * 1024,
		MaxFields:    1024,
	}
}

// MessageView exposes one borrowed LogMessage to guest code under a numeric
// handle. Calls carrying any other handle are rejected.
type MessageView struct {
	handle int64
	msg    logmsg.LogMessage
	cfg    MessageConfig
}

// NewMessageView exposes msg under handle with the limits in cfg.
func NewMessageView(handle int64, msg logmsg.LogMessage, cfg MessageConfig) *MessageView {
	return &MessageView{handle: handle, msg: msg, cfg: cfg}
}

// Handle returns the handle the guest must present.
func (v *MessageView) Handle() int64 {
	return v.handle
}

// Register installs the accessor functions into r.
func (v *MessageView) Register(r *Registry) {
	r.Register(FuncMessageGet, v.Get)
	r.Register(FuncMessageSet, v.Set)
	r.Register(FuncMessageUnset, v.Unset)
	r.Register(FuncMessageNames, v.Names)
}

func (v *MessageView) check(args map[string]any) error {
	// JSON numbers decode as float64.
	h, ok := args["msg"].(float64)
	if !ok {
		return errors.New("msg handle required")
	}
	if int64(h) != v.handle {
		return ErrStaleMessage
	}
	return nil
}

func (v *MessageView) name(args map[string]any) (string, error) {
	name, ok := args["name"].(string)
	if !ok || name == "" {
		return "", errors.New("name required")
	}
	if v.cfg.MaxNameSize > 0 && len(name) > v.cfg.MaxNameSize {
		return "", fmt.Errorf("name too large: %d bytes (max %d)", len(name), v.cfg.MaxNameSize)
	}
	return name, nil
}

// Get returns the named field, or nil when it is not set.
func (v *MessageView) Get(ctx context.Context, args map[string]any) (any, error) {
	if err := v.check(args); err != nil {
		return nil, err
	}
	name, err := v.name(args)
	if err != nil {
		return nil, err
	}

	val, exists := v.msg.Get(name)
	if !exists {
		return nil, nil
	}
	return val, nil
}

// Set stores a field, enforcing the size and field count limits.
func (v *MessageView) Set(ctx context.Context, args map[string]any) (any, error) {
	if err := v.check(args); err != nil {
		return nil, err
	}
	name, err := v.name(args)
	if err != nil {
		return nil, err
	}
	val, ok := args["value"].(string)
	if !ok {
		return nil, errors.New("value required")
	}
	if v.cfg.MaxValueSize > 0 && len(val) > v.cfg.MaxValueSize {
		return nil, fmt.Errorf("value too large: %d bytes (max %d)", len(val), v.cfg.MaxValueSize)
	}

	if v.cfg.MaxFields > 0 {
		if _, exists := v.msg.Get(name); !exists && len(v.msg.Names()) >= v.cfg.MaxFields {
			return nil, fmt.Errorf("too many fields (max %d)", v.cfg.MaxFields)
		}
	}

	v.msg.Set(name, val)
	return "ok", nil
}

// Unset removes a field. Removing a missing field is not an error.
func (v *MessageView) Unset(ctx context.Context, args map[string]any) (any, error) {
	if err := v.check(args); err != nil {
		return nil, err
	}
	name, err := v.name(args)
	if err != nil {
		return nil, err
	}

	v.msg.Unset(name)
	return "ok", nil
}

// Names returns the names of all set fields.
func (v *MessageView) Names(ctx context.Context, args map[string]any) (any, error) {
	if err := v.check(args); err != nil {
		return nil, err
	}
	return v.msg.Names(), nil
}
