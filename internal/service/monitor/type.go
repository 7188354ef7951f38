package monitor

import "time"

// State 监控循环所处阶段
type State string

const (
	StateStarting      State = "starting"
	StatePolling       State = "polling"
	StateBackoffSource State = "backoff_source"
	StateBackoffSink   State = "backoff_sink"
	StateTerminated    State = "terminated"
)

// Health 监控循环对外暴露的状态副本
type Health struct {
	State            State     `json:"state"`
	SourceFailures   int       `json:"source_failures"`
	SinkFailures     int       `json:"sink_failures"`
	AcceptedNetworks int       `json:"accepted_networks"`
	LastSuccessAt    time.Time `json:"last_success_at"`
	LastFailureAt    time.Time `json:"last_failure_at"`
	LastNotifiedAt   time.Time `json:"last_notified_at"`
}

// Healthy 启动完成且未终止
func (h Health) Healthy() bool {
	return h.State != StateStarting && h.State != StateTerminated
}
