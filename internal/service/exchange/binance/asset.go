package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KNICEX/coin-status-watcher/internal/service/exchange"
	"github.com/KNICEX/coin-status-watcher/internal/service/status"
	"github.com/adshao/go-binance/v2"
)

// 整个请求的固定窗口, getall 接口不接受 recvWindow 参数
const fetchTimeout = 10 * time.Second

// 每个网络必须显式返回的字段, 缺失的布尔值会被解码成 false
var requiredNetworkFields = []string{"network", "depositEnable", "withdrawEnable"}

var _ exchange.AssetStatusService = (*AssetService)(nil)

// AssetService 通过 /sapi/v1/capital/config/getall 获取单个币种的网络状态
type AssetService struct {
	cli  *binance.Client
	coin string
}

// NewAssetService wraps the client's transport so Fetch can see the raw
// response document.
func NewAssetService(cli *binance.Client, coin string) *AssetService {
	base := cli.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	hc := *base
	hc.Transport = &captureTransport{base: base.Transport}
	cli.HTTPClient = &hc
	return &AssetService{cli: cli, coin: coin}
}

func (s *AssetService) Fetch(ctx context.Context) (status.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	raw := &rawBody{}
	coins, err := s.cli.NewGetAllCoinsInfoService().Do(context.WithValue(ctx, rawBodyKey{}, raw))
	if err != nil {
		return status.Snapshot{}, classifyError(err)
	}
	if err = checkNetworkFields(raw.data, s.coin); err != nil {
		return status.Snapshot{}, err
	}
	return snapshotFromCoins(coins, s.coin)
}

func snapshotFromCoins(coins []*binance.CoinInfo, coin string) (status.Snapshot, error) {
	for _, c := range coins {
		if c == nil || c.Coin != coin {
			continue
		}
		if c.NetworkList == nil {
			return status.Snapshot{}, exchange.Parse(fmt.Errorf("coin %s has no network list", coin))
		}

		networks := make([]status.NetworkStatus, 0, len(c.NetworkList))
		for _, n := range c.NetworkList {
			networks = append(networks, status.NetworkStatus{
				Network:         n.Network,
				DepositEnabled:  n.DepositEnable,
				DepositReason:   n.DepositDesc,
				WithdrawEnabled: n.WithdrawEnable,
				WithdrawReason:  n.WithdrawDesc,
			})
		}
		snap, err := status.NewSnapshot(networks...)
		if err != nil {
			return status.Snapshot{}, exchange.Parse(err)
		}
		return snap, nil
	}
	return status.Snapshot{}, exchange.AssetNotFound(coin)
}

// checkNetworkFields 校验被监控币种的每个网络都带有必需字段.
// 币种不存在时不在这里报错, 交给 snapshotFromCoins.
func checkNetworkFields(data []byte, coin string) error {
	var coins []struct {
		Coin        string                       `json:"coin"`
		NetworkList []map[string]json.RawMessage `json:"networkList"`
	}
	if err := json.Unmarshal(data, &coins); err != nil {
		return exchange.Parse(err)
	}
	for _, c := range coins {
		if c.Coin != coin {
			continue
		}
		for i, n := range c.NetworkList {
			for _, field := range requiredNetworkFields {
				if v, ok := n[field]; !ok || string(v) == "null" {
					return exchange.Parse(fmt.Errorf("coin %s network #%d has no %s", coin, i, field))
				}
			}
		}
		return nil
	}
	return nil
}

func classifyError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return exchange.Parse(err)
	}
	return exchange.Transport(err)
}

type rawBodyKey struct{}

type rawBody struct {
	data []byte
}

// captureTransport 把响应体复制一份到请求 context 里的 rawBody
type captureTransport struct {
	base http.RoundTripper
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	raw, ok := req.Context().Value(rawBodyKey{}).(*rawBody)
	if !ok {
		return resp, nil
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	raw.data = data
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
