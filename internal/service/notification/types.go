package notification

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service 向配置好的频道发送一条文本消息
type Service interface {
	Send(ctx context.Context, text string, timeout time.Duration) error
}

var (
	ErrTimeout        = errors.New("notification not acknowledged in time")
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// Error 发送失败, Kind 为 ErrTimeout 或 ErrDeliveryFailed
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Timeout(err error) error {
	return &Error{Kind: ErrTimeout, Err: err}
}

func DeliveryFailed(err error) error {
	return &Error{Kind: ErrDeliveryFailed, Err: err}
}

// KindOf returns a short label for metrics.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	default:
		return "unknown"
	}
}
