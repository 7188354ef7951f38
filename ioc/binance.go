package ioc

import (
	"github.com/KNICEX/coin-status-watcher/internal/service/exchange"
	binancesvc "github.com/KNICEX/coin-status-watcher/internal/service/exchange/binance"
	"github.com/adshao/go-binance/v2"
)

func InitBinanceCli(cfg BinanceConfig) *binance.Client {
	return binance.NewClient(cfg.ApiKey, cfg.ApiSecret)
}

// NewAssetServiceFactory 每次调用都构造新的 binance client, 用于退避后重建
func NewAssetServiceFactory(cfg BinanceConfig, coin string) func() (exchange.AssetStatusService, error) {
	return func() (exchange.AssetStatusService, error) {
		return binancesvc.NewAssetService(InitBinanceCli(cfg), coin), nil
	}
}
