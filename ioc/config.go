package ioc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig
	Binance  BinanceConfig

	HTTPAddr   string
	HistoryDSN string
	LogLevel   string
}

type TelegramConfig struct {
	Token  string
	ChatId int64
}

type BinanceConfig struct {
	ApiKey    string
	ApiSecret string
}

// ConfigError 缺失或非法的配置项, 启动时致命
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// 配置键 -> 环境变量
var envBindings = map[string]string{
	"telegram.token":         "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":       "TELEGRAM_CHAT_ID",
	"cex.binance.api_key":    "BINANCE_API_KEY",
	"cex.binance.api_secret": "BINANCE_SECRET_KEY",
	"http.addr":              "HTTP_ADDR",
	"history.dsn":            "HISTORY_DSN",
	"log.level":              "LOG_LEVEL",
}

// InitConfig reads everything once at startup. All missing or invalid
// required keys are reported together.
func InitConfig(v *viper.Viper) (Config, error) {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}
	v.SetDefault("log.level", "info")

	var errs []error
	required := func(key string) string {
		val := strings.TrimSpace(v.GetString(key))
		if val == "" {
			errs = append(errs, &ConfigError{Key: envBindings[key], Reason: "missing"})
		}
		return val
	}

	cfg := Config{
		Telegram: TelegramConfig{Token: required("telegram.token")},
		Binance: BinanceConfig{
			ApiKey:    required("cex.binance.api_key"),
			ApiSecret: required("cex.binance.api_secret"),
		},
		HTTPAddr:   strings.TrimSpace(v.GetString("http.addr")),
		HistoryDSN: strings.TrimSpace(v.GetString("history.dsn")),
		LogLevel:   strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
	}

	if chatId := required("telegram.chat_id"); chatId != "" {
		id, err := strconv.ParseInt(chatId, 10, 64)
		if err != nil {
			errs = append(errs, &ConfigError{Key: envBindings["telegram.chat_id"], Reason: "not an integer chat id"})
		}
		cfg.Telegram.ChatId = id
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		errs = append(errs, &ConfigError{Key: envBindings["log.level"], Reason: fmt.Sprintf("unknown level %q", cfg.LogLevel)})
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
