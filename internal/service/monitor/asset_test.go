package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/KNICEX/coin-status-watcher/internal/entity"
	"github.com/KNICEX/coin-status-watcher/internal/service/exchange"
	"github.com/KNICEX/coin-status-watcher/internal/service/notification"
	"github.com/KNICEX/coin-status-watcher/internal/service/status"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAssetService struct{ mock.Mock }

func (m *MockAssetService) Fetch(ctx context.Context) (status.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(status.Snapshot)
	return snap, args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Send(ctx context.Context, text string, timeout time.Duration) error {
	return m.Called(ctx, text, timeout).Error(0)
}

type MockHistory struct{ mock.Mock }

func (m *MockHistory) Create(ctx context.Context, change entity.StatusChange) (int64, error) {
	args := m.Called(ctx, change)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockHistory) FindRecent(ctx context.Context, coin string, limit int) ([]entity.StatusChange, error) {
	args := m.Called(ctx, coin, limit)
	changes, _ := args.Get(0).([]entity.StatusChange)
	return changes, args.Error(1)
}

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const (
	testStamp = "\n2024-05-01 12:00:00 UTC"
	testWait  = 2 * time.Second
)

type testMonitor struct {
	*AssetMonitor
	source       *MockAssetService
	sink         *MockNotifier
	clock        *clockwork.FakeClock
	sourceBuilds int
	sinkBuilds   int
}

func newTestMonitor(t *testing.T, opts ...Option) *testMonitor {
	tm := &testMonitor{
		source: new(MockAssetService),
		sink:   new(MockNotifier),
		clock:  clockwork.NewFakeClockAt(testStart),
	}
	opts = append([]Option{
		WithClock(tm.clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	m, err := NewAssetMonitor(Coin,
		func() (exchange.AssetStatusService, error) {
			tm.sourceBuilds++
			return tm.source, nil
		},
		func() (notification.Service, error) {
			tm.sinkBuilds++
			return tm.sink, nil
		},
		opts...,
	)
	require.NoError(t, err)
	tm.AssetMonitor = m
	return tm
}

func available() status.Snapshot {
	return status.MustNewSnapshot(status.NetworkStatus{Network: "AVAX-C", DepositEnabled: true, WithdrawEnabled: true})
}

func withdrawSuspended() status.Snapshot {
	return status.MustNewSnapshot(status.NetworkStatus{
		Network: "AVAX-C", DepositEnabled: true, WithdrawEnabled: false, WithdrawReason: "maintenance",
	})
}

func TestNewAssetMonitor_FactoryError(t *testing.T) {
	_, err := NewAssetMonitor(Coin,
		func() (exchange.AssetStatusService, error) { return nil, errors.New("bad key") },
		func() (notification.Service, error) { return new(MockNotifier), nil },
	)
	assert.ErrorContains(t, err, "init exchange client")

	_, err = NewAssetMonitor(Coin,
		func() (exchange.AssetStatusService, error) { return new(MockAssetService), nil },
		func() (notification.Service, error) { return nil, errors.New("bad token") },
	)
	assert.ErrorContains(t, err, "init notification client")
}

func TestAssetMonitor_Start(t *testing.T) {
	tm := newTestMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(available(), nil).Once()
	tm.sink.On("Send", mock.Anything, "Network: AVAX-C\nDeposit available\nWithdraw available"+testStamp, NotifyTimeout).Return(nil).Once()

	require.NoError(t, tm.Start(context.Background()))

	require.NotNil(t, tm.Accepted())
	assert.True(t, available().Equal(*tm.Accepted()))
	assert.Equal(t, StatePolling, tm.Health().State)
	assert.Equal(t, 1, tm.Health().AcceptedNetworks)
	tm.source.AssertExpectations(t)
	tm.sink.AssertExpectations(t)
}

func TestAssetMonitor_Start_Failures(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		tm := newTestMonitor(t)
		tm.source.On("Fetch", mock.Anything).Return(nil, exchange.Transport(errors.New("timeout"))).Once()

		err := tm.Start(context.Background())
		assert.ErrorIs(t, err, exchange.ErrTransport)
		assert.Equal(t, StateTerminated, tm.Health().State)
		assert.Nil(t, tm.Accepted())
		tm.sink.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("send", func(t *testing.T) {
		tm := newTestMonitor(t)
		tm.source.On("Fetch", mock.Anything).Return(available(), nil).Once()
		tm.sink.On("Send", mock.Anything, mock.Anything, NotifyTimeout).Return(notification.Timeout(context.DeadlineExceeded)).Once()

		err := tm.Start(context.Background())
		assert.ErrorIs(t, err, notification.ErrTimeout)
		assert.Equal(t, StateTerminated, tm.Health().State)
		assert.Nil(t, tm.Accepted())
	})
}

func startedMonitor(t *testing.T, opts ...Option) *testMonitor {
	tm := newTestMonitor(t, opts...)
	tm.source.On("Fetch", mock.Anything).Return(available(), nil).Once()
	tm.sink.On("Send", mock.Anything, mock.Anything, NotifyTimeout).Return(nil).Once()
	require.NoError(t, tm.Start(context.Background()))
	return tm
}

func TestAssetMonitor_RunCycle_NoChange(t *testing.T) {
	tm := startedMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(available(), nil).Once()

	tm.RunCycle(context.Background())

	tm.sink.AssertNumberOfCalls(t, "Send", 1)
	source, sink := tm.Failures()
	assert.Zero(t, source)
	assert.Zero(t, sink)
}

func TestAssetMonitor_RunCycle_ChangeDelivered(t *testing.T) {
	history := new(MockHistory)
	history.On("Create", mock.Anything, mock.MatchedBy(func(c entity.StatusChange) bool {
		return c.Kind == entity.StatusChangeKindInitial
	})).Return(1, nil).Once()
	history.On("Create", mock.Anything, mock.MatchedBy(func(c entity.StatusChange) bool {
		return c.Kind == entity.StatusChangeKindChange && c.Coin == Coin && c.Message == "Withdraw [SUSPENDED]"+testStamp
	})).Return(2, nil).Once()

	tm := startedMonitor(t, WithHistory(history))
	tm.source.On("Fetch", mock.Anything).Return(withdrawSuspended(), nil).Once()
	tm.sink.On("Send", mock.Anything, "Withdraw [SUSPENDED]"+testStamp, NotifyTimeout).Return(nil).Once()

	tm.RunCycle(context.Background())

	assert.True(t, withdrawSuspended().Equal(*tm.Accepted()))
	tm.sink.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestAssetMonitor_RunCycle_SendFailureKeepsBaseline(t *testing.T) {
	tm := startedMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(withdrawSuspended(), nil).Twice()
	tm.sink.On("Send", mock.Anything, "Withdraw [SUSPENDED]"+testStamp, NotifyTimeout).
		Return(notification.DeliveryFailed(errors.New("Bad Gateway"))).Once()

	tm.RunCycle(context.Background())

	assert.True(t, available().Equal(*tm.Accepted()), "accepted snapshot must not move on failed send")
	_, sink := tm.Failures()
	assert.Equal(t, 1, sink)

	// 下一轮对同一基线重新计算出相同的 diff
	tm.sink.On("Send", mock.Anything, "Withdraw [SUSPENDED]"+testStamp, NotifyTimeout).Return(nil).Once()
	tm.RunCycle(context.Background())

	assert.True(t, withdrawSuspended().Equal(*tm.Accepted()))
	_, sink = tm.Failures()
	assert.Zero(t, sink)
	tm.sink.AssertExpectations(t)
}

func TestAssetMonitor_RunCycle_FetchFailure(t *testing.T) {
	tm := startedMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(nil, exchange.Parse(errors.New("bad json"))).Once()
	tm.source.On("Fetch", mock.Anything).Return(available(), nil).Once()

	tm.RunCycle(context.Background())
	source, _ := tm.Failures()
	assert.Equal(t, 1, source)
	assert.True(t, available().Equal(*tm.Accepted()))
	assert.Equal(t, testStart, tm.Health().LastFailureAt)

	tm.RunCycle(context.Background())
	source, _ = tm.Failures()
	assert.Zero(t, source)
}

func TestAssetMonitor_RunCycle_ReorderAdoptedSilently(t *testing.T) {
	first := status.MustNewSnapshot(
		status.NetworkStatus{Network: "AVAX-C", DepositEnabled: true, WithdrawEnabled: true},
		status.NetworkStatus{Network: "BSC", DepositEnabled: true, WithdrawEnabled: true},
	)
	reordered := status.MustNewSnapshot(
		status.NetworkStatus{Network: "BSC", DepositEnabled: true, WithdrawEnabled: true},
		status.NetworkStatus{Network: "AVAX-C", DepositEnabled: true, WithdrawEnabled: true},
	)

	tm := newTestMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(first, nil).Once()
	tm.sink.On("Send", mock.Anything, mock.Anything, NotifyTimeout).Return(nil).Once()
	require.NoError(t, tm.Start(context.Background()))

	tm.source.On("Fetch", mock.Anything).Return(reordered, nil).Once()
	tm.RunCycle(context.Background())

	tm.sink.AssertNumberOfCalls(t, "Send", 1)
	assert.True(t, reordered.Equal(*tm.Accepted()))
}

func TestAssetMonitor_RunCycle_EnabledReasonAdoptedSilently(t *testing.T) {
	history := new(MockHistory)
	history.On("Create", mock.Anything, mock.Anything).Return(1, nil)
	tm := startedMonitor(t, WithHistory(history))

	staleText := status.MustNewSnapshot(status.NetworkStatus{
		Network: "AVAX-C", DepositEnabled: true, DepositReason: "stale notice", WithdrawEnabled: true,
	})
	tm.source.On("Fetch", mock.Anything).Return(staleText, nil).Once()
	tm.RunCycle(context.Background())

	tm.sink.AssertNumberOfCalls(t, "Send", 1)
	history.AssertNumberOfCalls(t, "Create", 1)
	assert.True(t, staleText.Equal(*tm.Accepted()))

	// 之后的变化以新采纳的快照为基线
	suspended := status.MustNewSnapshot(status.NetworkStatus{
		Network: "AVAX-C", DepositEnabled: false, DepositReason: "upgrade", WithdrawEnabled: true,
	})
	tm.source.On("Fetch", mock.Anything).Return(suspended, nil).Once()
	tm.sink.On("Send", mock.Anything, "Deposit [SUSPENDED]"+testStamp, NotifyTimeout).Return(nil).Once()
	tm.RunCycle(context.Background())

	assert.True(t, suspended.Equal(*tm.Accepted()))
	tm.sink.AssertExpectations(t)
	history.AssertNumberOfCalls(t, "Create", 2)
}

func waitCycle(ctx context.Context, tm *testMonitor) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		tm.RunCycle(ctx)
	}()
	return done
}

func TestAssetMonitor_SourceBackoff(t *testing.T) {
	tm := startedMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(nil, exchange.Transport(errors.New("connection refused")))
	ctx := context.Background()

	for i := 1; i < MaxRetry; i++ {
		tm.RunCycle(ctx)
		source, _ := tm.Failures()
		require.Equal(t, i, source)
	}
	require.Equal(t, 1, tm.sourceBuilds)

	done := waitCycle(ctx, tm)
	blockCtx, cancel := context.WithTimeout(ctx, testWait)
	defer cancel()
	require.NoError(t, tm.clock.BlockUntilContext(blockCtx, 1))
	assert.Equal(t, StateBackoffSource, tm.Health().State)

	tm.clock.Advance(BackoffDelay - time.Second)
	select {
	case <-done:
		t.Fatal("backoff ended before an hour passed")
	case <-time.After(20 * time.Millisecond):
	}

	tm.clock.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(testWait):
		t.Fatal("backoff did not end after an hour")
	}

	source, sink := tm.Failures()
	assert.Zero(t, source)
	assert.Zero(t, sink)
	assert.Equal(t, 2, tm.sourceBuilds)
	assert.Equal(t, 1, tm.sinkBuilds)
	assert.Equal(t, StatePolling, tm.Health().State)
}

func TestAssetMonitor_SinkBackoff(t *testing.T) {
	tm := startedMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(withdrawSuspended(), nil)
	tm.sink.On("Send", mock.Anything, mock.Anything, NotifyTimeout).Return(notification.Timeout(context.DeadlineExceeded))
	ctx := context.Background()

	for i := 1; i < MaxRetry; i++ {
		tm.RunCycle(ctx)
	}
	_, sink := tm.Failures()
	require.Equal(t, MaxRetry-1, sink)

	done := waitCycle(ctx, tm)
	blockCtx, cancel := context.WithTimeout(ctx, testWait)
	defer cancel()
	require.NoError(t, tm.clock.BlockUntilContext(blockCtx, 1))
	assert.Equal(t, StateBackoffSink, tm.Health().State)
	tm.clock.Advance(BackoffDelay)
	<-done

	_, sink = tm.Failures()
	assert.Zero(t, sink)
	assert.Equal(t, 2, tm.sinkBuilds)
	assert.True(t, available().Equal(*tm.Accepted()))
}

func TestAssetMonitor_RebuildFailureKeepsClient(t *testing.T) {
	tm := startedMonitor(t)
	tm.newSource = func() (exchange.AssetStatusService, error) {
		return nil, errors.New("dns failure")
	}
	tm.source.On("Fetch", mock.Anything).Return(nil, exchange.Transport(errors.New("connection refused")))
	ctx := context.Background()

	for i := 1; i < MaxRetry; i++ {
		tm.RunCycle(ctx)
	}
	done := waitCycle(ctx, tm)
	blockCtx, cancel := context.WithTimeout(ctx, testWait)
	defer cancel()
	require.NoError(t, tm.clock.BlockUntilContext(blockCtx, 1))
	tm.clock.Advance(BackoffDelay)
	<-done

	assert.Same(t, tm.source, tm.AssetMonitor.source)
	source, _ := tm.Failures()
	assert.Zero(t, source)
}

func TestAssetMonitor_Run_StopsOnCancel(t *testing.T) {
	tm := startedMonitor(t)
	tm.source.On("Fetch", mock.Anything).Return(available(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- tm.Run(ctx)
	}()

	blockCtx, blockCancel := context.WithTimeout(context.Background(), testWait)
	defer blockCancel()
	require.NoError(t, tm.clock.BlockUntilContext(blockCtx, 1))
	tm.clock.Advance(RefreshInterval)
	require.NoError(t, tm.clock.BlockUntilContext(blockCtx, 1))
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(testWait):
		t.Fatal("Run did not return after cancel")
	}
	tm.source.AssertNumberOfCalls(t, "Fetch", 3)
}
