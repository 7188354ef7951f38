package monitor

import (
	"context"

	"github.com/KNICEX/coin-status-watcher/internal/schedule"
)

type AssetMonitorTask struct {
	monitor *AssetMonitor
}

func NewAssetMonitorTask(monitor *AssetMonitor) schedule.Task {
	return &AssetMonitorTask{
		monitor: monitor,
	}
}

// Run 启动失败直接返回错误, 之后一直轮询直到 ctx 取消
func (t *AssetMonitorTask) Run(ctx context.Context) error {
	if err := t.monitor.Start(ctx); err != nil {
		return err
	}
	return t.monitor.Run(ctx)
}

func (t *AssetMonitorTask) Name() string {
	return "asset status monitor task"
}
