package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll loop counters, partitioned by coin.

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "monitor",
		Name:      "cycles_total",
		Help:      "Total polling cycles run",
	}, []string{"coin"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "exchange",
		Name:      "fetch_errors_total",
		Help:      "Total asset status fetch failures",
	}, []string{"coin", "kind"})

	NotifyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "notification",
		Name:      "send_errors_total",
		Help:      "Total notification send failures",
	}, []string{"coin", "kind"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "notification",
		Name:      "sent_total",
		Help:      "Total notifications delivered",
	}, []string{"coin"})

	BackoffsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "monitor",
		Name:      "backoffs_total",
		Help:      "Total backoff pauses after repeated failures",
	}, []string{"coin", "dependency"})

	AcceptedNetworks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "watcher",
		Subsystem: "monitor",
		Name:      "accepted_networks",
		Help:      "Number of networks in the accepted snapshot",
	}, []string{"coin"})

	SuspendedNetworks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "watcher",
		Subsystem: "monitor",
		Name:      "suspended",
		Help:      "1 when the operation is suspended on the network in the accepted snapshot",
	}, []string{"coin", "network", "operation"})
)
