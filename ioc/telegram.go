package ioc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/KNICEX/coin-status-watcher/internal/service/notification"
	"github.com/KNICEX/coin-status-watcher/internal/service/notification/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// 兜住被超时放弃的发送 goroutine
const telegramHTTPTimeout = 30 * time.Second

// InitTelegramBot 构造时会调用 getMe 校验 token
func InitTelegramBot(cfg TelegramConfig) (*tgbotapi.BotAPI, error) {
	return InitTelegramBotWithEndpoint(cfg, tgbotapi.APIEndpoint)
}

func InitTelegramBotWithEndpoint(cfg TelegramConfig, endpoint string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{Timeout: telegramHTTPTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

func NewNotificationFactory(cfg TelegramConfig) func() (notification.Service, error) {
	return func() (notification.Service, error) {
		bot, err := InitTelegramBot(cfg)
		if err != nil {
			return nil, err
		}
		return telegram.NewService(bot, cfg.ChatId), nil
	}
}
