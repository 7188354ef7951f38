package telegram

import (
	"context"
	"time"

	"github.com/KNICEX/coin-status-watcher/internal/service/notification"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var _ notification.Service = (*Service)(nil)

// Sender is the part of *tgbotapi.BotAPI the service needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Service struct {
	bot    Sender
	chatID int64
}

func NewService(bot Sender, chatID int64) *Service {
	return &Service{bot: bot, chatID: chatID}
}

// Send 发送纯文本消息. BotAPI 不支持 context, 超时后放弃等待,
// 后台请求由 bot 的 http.Client 超时兜底结束.
func (s *Service) Send(ctx context.Context, text string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, text))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return notification.DeliveryFailed(err)
		}
		return nil
	case <-ctx.Done():
		return notification.Timeout(ctx.Err())
	}
}
