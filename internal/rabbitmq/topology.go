package rabbitmq

const prefetch = 10

// Обменники, ключи маршрутизации и очереди сервиса.
const (
	ExchangeLetters = "letters"
	RoutingGenerate = "generate"
	QueueGenerate   = "letters.generate"

	ExchangeNotifications  = "notifications"
	RoutingLetterCompleted = "letter.completed"
	QueueLetterReady       = "notifications.letters"
)

// Binding связывает очередь с обменником по ключу маршрутизации.
type Binding struct {
	Exchange   string
	QueueName  string
	RoutingKey string
}

// GenerationBindings очередь задач генерации писем.
func GenerationBindings() []Binding {
	return []Binding{
		{Exchange: ExchangeLetters, QueueName: QueueGenerate, RoutingKey: RoutingGenerate},
	}
}

// NotificationBindings очереди уведомлений пользователей.
func NotificationBindings() []Binding {
	return []Binding{
		{Exchange: ExchangeNotifications, QueueName: QueueLetterReady, RoutingKey: RoutingLetterCompleted},
	}
}

// AllBindings полная топология, объявляемая HTTP-сервисом при старте.
func AllBindings() []Binding {
	return append(GenerationBindings(), NotificationBindings()...)
}
