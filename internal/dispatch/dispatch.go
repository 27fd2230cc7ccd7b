// Package dispatch передаёт задачи генерации писем исполнителю: пулу горутин
// внутри процесса или очереди RabbitMQ.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/rabbitmq"
)

// ErrQueueFull — пул перегружен, задача не принята.
var ErrQueueFull = errors.New("generation queue is full")

// ErrClosed — пул остановлен.
var ErrClosed = errors.New("dispatcher is closed")

// Task — сообщение о задаче генерации.
type Task struct {
	LetterID string `json:"letter_id"`
}

// Dispatcher ставит письмо в очередь на генерацию.
type Dispatcher interface {
	Dispatch(ctx context.Context, letterID string) error
}

// HandlerFunc выполняет задачу генерации.
type HandlerFunc func(ctx context.Context, letterID string) error

// Pool — ограниченный пул воркеров. Задачи выполняются в фоне с контекстом пула,
// отмена контекста запроса на них не влияет.
type Pool struct {
	log     *slog.Logger
	tasks   chan string
	handler HandlerFunc
	workers int
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool создаёт пул. Run запускает воркеров.
func NewPool(log *slog.Logger, workers, queueSize int, handler HandlerFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	return &Pool{
		log:     log.With(slog.String("component", "dispatch.pool")),
		tasks:   make(chan string, queueSize),
		handler: handler,
		workers: workers,
	}
}

// Run запускает воркеров, которые работают до Close. ctx передаётся в handler.
func (p *Pool) Run(ctx context.Context) {
	p.wg.Add(p.workers)
	for range p.workers {
		go func() {
			defer p.wg.Done()
			for id := range p.tasks {
				if err := p.handler(ctx, id); err != nil {
					p.log.Error("generation task failed", slog.String("letter_id", id), sl.Err(err))
				}
			}
		}()
	}
}

// Dispatch ставит задачу без блокировки.
func (p *Pool) Dispatch(ctx context.Context, letterID string) error {
	const op = "dispatch.Pool.Dispatch"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	select {
	case p.tasks <- letterID:
		return nil
	default:
		return fmt.Errorf("%s: %w", op, ErrQueueFull)
	}
}

// Close перестаёт принимать задачи и ждёт завершения уже принятых.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Publisher публикует сообщение в брокер.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, message any) error
}

// AMQPDispatcher отправляет задачи в обменник letters для letter-worker.
type AMQPDispatcher struct {
	pub Publisher
}

// NewAMQPDispatcher создаёт диспетчер поверх издателя RabbitMQ.
func NewAMQPDispatcher(pub Publisher) *AMQPDispatcher {
	return &AMQPDispatcher{pub: pub}
}

// Dispatch публикует задачу с ключом generate.
func (d *AMQPDispatcher) Dispatch(ctx context.Context, letterID string) error {
	const op = "dispatch.AMQPDispatcher.Dispatch"
	if err := d.pub.Publish(ctx, rabbitmq.ExchangeLetters, rabbitmq.RoutingGenerate, Task{LetterID: letterID}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
