package hostfunc

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// FuncLog is the name guest code uses to write to the host log.
const FuncLog = "log"

// NewLog returns a host function that writes guest log lines to l.
// Args: level (debug, info, warning, error), text.
func NewLog(l *zap.Logger) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		text, ok := args["text"].(string)
		if !ok {
			return nil, errors.New("text required")
		}
		level, _ := args["level"].(string)

		switch strings.ToLower(level) {
		case "debug":
			l.Debug(text)
		case "warn", "warning":
			l.Warn(text)
		case "error", "critical":
			l.Error(text)
		default:
			l.Info(text)
		}
		return nil, nil
	}
}
