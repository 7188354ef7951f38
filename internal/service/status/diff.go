package status

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Diff compares the accepted snapshot with a freshly fetched one.
//
// previous == nil is the startup comparison: the full status of every network
// is reported, one block per network in current's order. Otherwise only the
// changed networks and fields are reported, one line each. ok is false when
// nothing worth notifying changed; networks are matched by name, so a pure
// reordering reports nothing even though the snapshots are not Equal.
func Diff(previous *Snapshot, current Snapshot) (msg string, ok bool) {
	if previous == nil {
		return Report(current), true
	}
	if previous.Equal(current) {
		return "", false
	}

	before := lo.SliceToMap(previous.networks, func(n NetworkStatus) (string, NetworkStatus) {
		return n.Network, n
	})
	after := lo.SliceToMap(current.networks, func(n NetworkStatus) (string, NetworkStatus) {
		return n.Network, n
	})

	// 只有一个同名网络时不加网络前缀
	single := len(previous.networks) == 1 && len(current.networks) == 1 &&
		previous.networks[0].Network == current.networks[0].Network
	prefix := func(network, line string) string {
		if single {
			return line
		}
		return network + ": " + line
	}

	var lines []string
	for _, cur := range current.networks {
		prev, found := before[cur.Network]
		if !found {
			lines = append(lines, fmt.Sprintf("Network %s [ADDED]", cur.Network))
			for _, l := range cur.availability() {
				lines = append(lines, prefix(cur.Network, l))
			}
			continue
		}
		for _, l := range fieldChanges("Deposit", prev.DepositEnabled, prev.DepositReason, cur.DepositEnabled, cur.DepositReason) {
			lines = append(lines, prefix(cur.Network, l))
		}
		for _, l := range fieldChanges("Withdraw", prev.WithdrawEnabled, prev.WithdrawReason, cur.WithdrawEnabled, cur.WithdrawReason) {
			lines = append(lines, prefix(cur.Network, l))
		}
	}
	for _, prev := range previous.networks {
		if _, found := after[prev.Network]; !found {
			lines = append(lines, fmt.Sprintf("Network %s [REMOVED]", prev.Network))
		}
	}

	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// Report renders the full status, blocks separated by a blank line.
func Report(s Snapshot) string {
	return strings.Join(lo.Map(s.networks, func(n NetworkStatus, _ int) string {
		return n.String()
	}), "\n\n")
}

func fieldChanges(field string, wasEnabled bool, wasReason string, enabled bool, reason string) []string {
	switch {
	case !wasEnabled && enabled:
		return []string{field + " [RESUMED]"}
	case wasEnabled && !enabled:
		return []string{field + " [SUSPENDED]"}
	case !enabled && wasReason != reason:
		return []string{fmt.Sprintf("%s reason updated: %s", field, reason)}
	default:
		// 可用状态下的描述变化不通知
		return nil
	}
}
