package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KNICEX/coin-status-watcher/internal/entity"
	"github.com/KNICEX/coin-status-watcher/internal/metrics"
	"github.com/KNICEX/coin-status-watcher/internal/repo"
	"github.com/KNICEX/coin-status-watcher/internal/service/exchange"
	"github.com/KNICEX/coin-status-watcher/internal/service/notification"
	"github.com/KNICEX/coin-status-watcher/internal/service/status"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	Coin = "AVAX"

	RefreshInterval = 60 * time.Second
	MaxRetry        = 5
	BackoffDelay    = time.Hour
	NotifyTimeout   = 8 * time.Second

	historyTimeout = 5 * time.Second
)

// SourceFactory / SinkFactory 用于启动和连续失败后重建客户端
type (
	SourceFactory func() (exchange.AssetStatusService, error)
	SinkFactory   func() (notification.Service, error)
)

// AssetMonitor 轮询币种网络状态, 变化时推送通知.
// accepted 和失败计数只由运行循环的 goroutine 读写, health 是给外部读的副本.
type AssetMonitor struct {
	coin      string
	newSource SourceFactory
	newSink   SinkFactory
	source    exchange.AssetStatusService
	sink      notification.Service
	history   repo.StatusChangeRepo

	clock  clockwork.Clock
	logger *slog.Logger

	accepted       *status.Snapshot
	sourceFailures int
	sinkFailures   int

	mu     sync.RWMutex
	health Health
}

type Option func(m *AssetMonitor)

func WithClock(clock clockwork.Clock) Option {
	return func(m *AssetMonitor) {
		m.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *AssetMonitor) {
		m.logger = logger
	}
}

// WithHistory 成功推送的通知写入审计表
func WithHistory(history repo.StatusChangeRepo) Option {
	return func(m *AssetMonitor) {
		m.history = history
	}
}

// NewAssetMonitor builds the exchange and messaging clients through their
// factories; a factory error here is a startup failure.
func NewAssetMonitor(coin string, newSource SourceFactory, newSink SinkFactory, opts ...Option) (*AssetMonitor, error) {
	m := &AssetMonitor{
		coin:      coin,
		newSource: newSource,
		newSink:   newSink,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "asset_monitor", "coin", coin)

	var err error
	if m.source, err = newSource(); err != nil {
		return nil, fmt.Errorf("init exchange client: %w", err)
	}
	if m.sink, err = newSink(); err != nil {
		return nil, fmt.Errorf("init notification client: %w", err)
	}
	m.health.State = StateStarting
	return m, nil
}

// Start 首次拉取并无条件推送完整状态, 任何失败都直接返回, 没有可回退的基线.
func (m *AssetMonitor) Start(ctx context.Context) error {
	m.setState(StateStarting)
	cycle := uuid.NewString()
	logger := m.logger.With("cycle", cycle)

	snap, err := m.source.Fetch(ctx)
	if err != nil {
		m.setState(StateTerminated)
		return fmt.Errorf("initial fetch of %s status: %w", m.coin, err)
	}

	report, _ := status.Diff(nil, snap)
	msg := status.Stamp(report, m.clock.Now())
	if err = m.sink.Send(ctx, msg, NotifyTimeout); err != nil {
		m.setState(StateTerminated)
		return fmt.Errorf("announce initial %s status: %w", m.coin, err)
	}
	logger.Info("initial status sent", "networks", snap.Len(), "message", msg)

	m.accept(ctx, snap, msg, entity.StatusChangeKindInitial, cycle)
	m.setState(StatePolling)
	return nil
}

// Run repeats RunCycle every RefreshInterval until ctx is cancelled.
func (m *AssetMonitor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.RunCycle(ctx)
		if !m.sleep(ctx, RefreshInterval) {
			return ctx.Err()
		}
	}
}

// RunCycle 执行一轮: 拉取 -> 比较 -> 有变化则推送 -> 连续失败检查.
// 稳态下的错误只记录和计数, 不向上返回.
func (m *AssetMonitor) RunCycle(ctx context.Context) {
	cycle := uuid.NewString()
	logger := m.logger.With("cycle", cycle)
	metrics.CyclesTotal.WithLabelValues(m.coin).Inc()

	m.poll(ctx, logger, cycle)
	m.backoff(ctx, logger)
	m.setState(StatePolling)
}

func (m *AssetMonitor) poll(ctx context.Context, logger *slog.Logger, cycle string) {
	logger.Debug("requesting asset status")
	snap, err := m.source.Fetch(ctx)
	if err != nil {
		m.sourceFailures++
		metrics.FetchErrors.WithLabelValues(m.coin, exchange.KindOf(err)).Inc()
		logger.Error("failed to fetch asset status", "error", err, "failures", m.sourceFailures)
		m.recordFailure()
		return
	}
	m.sourceFailures = 0

	diff, changed := status.Diff(m.accepted, snap)
	if !changed {
		if m.accepted != nil && !m.accepted.Equal(snap) {
			// 顺序变化或可用状态下的描述变化, 静默接受
			logger.Debug("snapshot differs without a notable change, adopting it")
			m.accepted = &snap
		}
		m.recordSuccess()
		return
	}

	msg := status.Stamp(diff, m.clock.Now())
	logger.Info("asset status changed", "message", msg)
	if err = m.sink.Send(ctx, msg, NotifyTimeout); err != nil {
		m.sinkFailures++
		metrics.NotifyErrors.WithLabelValues(m.coin, notification.KindOf(err)).Inc()
		logger.Error("failed to send status notification", "error", err, "failures", m.sinkFailures)
		m.recordFailure()
		return
	}
	m.sinkFailures = 0
	m.accept(ctx, snap, msg, entity.StatusChangeKindChange, cycle)
}

// backoff 两个依赖各自独立判断, 同一轮里可能先后各等一次
func (m *AssetMonitor) backoff(ctx context.Context, logger *slog.Logger) {
	if m.sourceFailures >= MaxRetry {
		m.setState(StateBackoffSource)
		metrics.BackoffsTotal.WithLabelValues(m.coin, "exchange").Inc()
		logger.Warn("too many exchange api errors, waiting", "failures", m.sourceFailures, "wait", BackoffDelay)
		if !m.sleep(ctx, BackoffDelay) {
			return
		}
		if source, err := m.newSource(); err != nil {
			logger.Error("failed to rebuild exchange client, keeping the old one", "error", err)
		} else {
			m.source = source
		}
		m.sourceFailures = 0
	}
	if m.sinkFailures >= MaxRetry {
		m.setState(StateBackoffSink)
		metrics.BackoffsTotal.WithLabelValues(m.coin, "notification").Inc()
		logger.Warn("too many notification api errors, waiting", "failures", m.sinkFailures, "wait", BackoffDelay)
		if !m.sleep(ctx, BackoffDelay) {
			return
		}
		if sink, err := m.newSink(); err != nil {
			logger.Error("failed to rebuild notification client, keeping the old one", "error", err)
		} else {
			m.sink = sink
		}
		m.sinkFailures = 0
	}
}

// accept 只在通知成功后调用
func (m *AssetMonitor) accept(ctx context.Context, snap status.Snapshot, msg, kind, cycle string) {
	m.accepted = &snap
	now := m.clock.Now()

	metrics.NotificationsSent.WithLabelValues(m.coin).Inc()
	metrics.AcceptedNetworks.WithLabelValues(m.coin).Set(float64(snap.Len()))
	for _, n := range snap.Networks() {
		metrics.SuspendedNetworks.WithLabelValues(m.coin, n.Network, "deposit").Set(boolGauge(!n.DepositEnabled))
		metrics.SuspendedNetworks.WithLabelValues(m.coin, n.Network, "withdraw").Set(boolGauge(!n.WithdrawEnabled))
	}

	m.mu.Lock()
	m.health.AcceptedNetworks = snap.Len()
	m.health.LastNotifiedAt = now
	m.mu.Unlock()
	m.recordSuccess()

	if m.history == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	_, err := m.history.Create(hctx, entity.StatusChange{
		Coin:      m.coin,
		Kind:      kind,
		Networks:  snap.Len(),
		Message:   msg,
		CycleId:   cycle,
		CreatedAt: now,
	})
	if err != nil {
		m.logger.Error("failed to save status change", "cycle", cycle, "error", err)
	}
}

// sleep returns false when ctx is cancelled before d elapses.
func (m *AssetMonitor) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-m.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// Accepted and Failures read loop-owned state; call them from the loop's
// goroutine or after it stopped. Other goroutines use Health.

// Accepted returns the last snapshot confirmed delivered, nil before Start.
func (m *AssetMonitor) Accepted() *status.Snapshot {
	return m.accepted
}

func (m *AssetMonitor) Failures() (source, sink int) {
	return m.sourceFailures, m.sinkFailures
}

func (m *AssetMonitor) Coin() string {
	return m.coin
}

// Health 可在其他 goroutine 调用
func (m *AssetMonitor) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

func (m *AssetMonitor) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.State = state
	m.health.SourceFailures = m.sourceFailures
	m.health.SinkFailures = m.sinkFailures
}

func (m *AssetMonitor) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.LastSuccessAt = m.clock.Now()
	m.health.SourceFailures = m.sourceFailures
	m.health.SinkFailures = m.sinkFailures
}

func (m *AssetMonitor) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.LastFailureAt = m.clock.Now()
	m.health.SourceFailures = m.sourceFailures
	m.health.SinkFailures = m.sinkFailures
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
