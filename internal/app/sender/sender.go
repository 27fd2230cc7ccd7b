// Package sender — процесс уведомлений: читает события о готовых письмах
// и отправляет владельцам email.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/legal-letters/internal/config"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/lib/smtp"
	"github.com/magabrotheeeer/legal-letters/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/legal-letters/internal/services/sender"
)

var ErrNotConfigured = errors.New("notification-sender requires RABBITMQ_URL and SMTP_HOST")

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" || cfg.SMTPHost == "" {
		return nil, ErrNotConfigured
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationBindings())
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewSenderService(logger, transport)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// LetterReadyHandler отправляет уведомление. Сообщение без адресата или
// с битым телом отклоняется, ошибка SMTP возвращает его в очередь.
func LetterReadyHandler(send func(context.Context, []byte) error) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		err := send(ctx, body)
		if errors.Is(err, senderservice.ErrBadMessage) {
			return fmt.Errorf("%w: %w", rabbitmq.ErrDrop, err)
		}
		return err
	}
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueueLetterReady, LetterReadyHandler(a.senderService.SendLetterReady))
	if err != nil {
		a.logger.Error("failed to start notifications consumer", slog.String("queue", rabbitmq.QueueLetterReady), sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}
