package exchange

import (
	"errors"
	"fmt"
)

var (
	ErrTransport     = errors.New("exchange api request failed")
	ErrAssetNotFound = errors.New("asset not found")
	ErrParse         = errors.New("malformed asset document")
)

// FetchError 拉取失败, Kind 为上面三个哨兵之一, 仅用于日志区分, 重试策略相同
type FetchError struct {
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Transport(err error) error {
	return &FetchError{Kind: ErrTransport, Err: err}
}

func Parse(err error) error {
	return &FetchError{Kind: ErrParse, Err: err}
}

func AssetNotFound(coin string) error {
	return &FetchError{Kind: ErrAssetNotFound, Err: fmt.Errorf("coin %s missing from response", coin)}
}

// KindOf returns a short label for metrics.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrAssetNotFound):
		return "asset_not_found"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "unknown"
	}
}
