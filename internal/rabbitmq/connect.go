// Package rabbitmq содержит подключение к брокеру, объявление топологии,
// публикацию JSON-сообщений и конкурентного потребителя очереди.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, повторяя попытку retries раз с паузой delay.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	if retries < 1 {
		retries = 1
	}
	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, объявляет обменники и очереди из bindings и связывает их.
func SetupChannel(conn *amqp.Connection, bindings []Binding) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	declared := make(map[string]bool)
	for _, b := range bindings {
		if !declared[b.Exchange] {
			err = ch.ExchangeDeclare(
				b.Exchange,
				"direct",
				true,
				false,
				false,
				false,
				nil,
			)
			if err != nil {
				_ = ch.Close()
				return nil, fmt.Errorf("%s: failed to declare exchange %s: %w", op, b.Exchange, err)
			}
			declared[b.Exchange] = true
		}

		_, err := ch.QueueDeclare(
			b.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, b.QueueName, err)
		}

		err = ch.QueueBind(
			b.QueueName,
			b.RoutingKey,
			b.Exchange,
			false,
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, b.QueueName, b.RoutingKey, err)
		}
	}

	return ch, nil
}
