package exchange

import (
	"context"

	"github.com/KNICEX/coin-status-watcher/internal/service/status"
)

// AssetStatusService 拉取被监控币种的各网络充提状态
type AssetStatusService interface {
	Fetch(ctx context.Context) (status.Snapshot, error)
}
