package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
)

// ErrDrop сообщает потребителю, что сообщение нельзя обработать никогда
// (например, оно не декодируется) и его нужно отклонить без возврата в очередь.
var ErrDrop = errors.New("drop message")

// ConsumerMessage запускает потребителя очереди queueName. Сообщения обрабатываются
// параллельно, не более prefetch одновременно. Ошибка handler возвращает сообщение
// в очередь, кроме ErrDrop.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler func(context.Context, []byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("queue", queueName))
	sem := make(chan struct{}, prefetch)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					log.Info("delivery channel closed")
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					settle(log, d, handler(ctx, d.Body))
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func settle(log *slog.Logger, d amqp.Delivery, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrDrop):
		log.Warn("dropping message", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Error("handler failed, requeueing", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
