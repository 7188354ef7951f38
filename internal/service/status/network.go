package status

import (
	"fmt"
	"strings"
)

// NetworkStatus 单个链网络的充提状态
type NetworkStatus struct {
	Network         string
	DepositEnabled  bool
	DepositReason   string // 仅在 DepositEnabled == false 时有意义
	WithdrawEnabled bool
	WithdrawReason  string // 仅在 WithdrawEnabled == false 时有意义
}

// availability renders the deposit and withdraw lines of a network without its header.
func (n NetworkStatus) availability() []string {
	return []string{
		availabilityLine("Deposit", n.DepositEnabled, n.DepositReason),
		availabilityLine("Withdraw", n.WithdrawEnabled, n.WithdrawReason),
	}
}

func (n NetworkStatus) String() string {
	lines := append([]string{fmt.Sprintf("Network: %s", n.Network)}, n.availability()...)
	return strings.Join(lines, "\n")
}

func availabilityLine(field string, enabled bool, reason string) string {
	if enabled {
		return field + " available"
	}
	return fmt.Sprintf("%s suspended: %s", field, reason)
}
