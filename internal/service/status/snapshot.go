package status

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidSnapshot = errors.New("invalid status snapshot")

// Snapshot 一次拉取得到的币种各网络状态, 保持交易所返回的顺序.
// 构造后不可修改, 监控循环整体替换而不是原地修改.
type Snapshot struct {
	networks []NetworkStatus
}

// NewSnapshot copies networks into a new Snapshot. Empty or repeated network
// names fail the whole construction.
func NewSnapshot(networks ...NetworkStatus) (Snapshot, error) {
	seen := make(map[string]struct{}, len(networks))
	for i, n := range networks {
		if n.Network == "" {
			return Snapshot{}, fmt.Errorf("%w: network #%d has no name", ErrInvalidSnapshot, i)
		}
		if _, ok := seen[n.Network]; ok {
			return Snapshot{}, fmt.Errorf("%w: network %s listed twice", ErrInvalidSnapshot, n.Network)
		}
		seen[n.Network] = struct{}{}
	}
	return Snapshot{networks: slices.Clone(networks)}, nil
}

// MustNewSnapshot is NewSnapshot for literals known to be valid.
func MustNewSnapshot(networks ...NetworkStatus) Snapshot {
	s, err := NewSnapshot(networks...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Snapshot) Networks() []NetworkStatus {
	return slices.Clone(s.networks)
}

func (s Snapshot) Len() int {
	return len(s.networks)
}

// Equal is structural and order-sensitive.
func (s Snapshot) Equal(other Snapshot) bool {
	return slices.Equal(s.networks, other.networks)
}
