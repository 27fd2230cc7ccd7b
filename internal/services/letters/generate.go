package letters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/magabrotheeeer/legal-letters/internal/contentgen"
	"github.com/magabrotheeeer/legal-letters/internal/lib/policy"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
	"github.com/magabrotheeeer/legal-letters/internal/telemetry"
)

// Generate — тело фоновой задачи генерации.
//
// Письмо с уже сгенерированным содержимым или не в статусе requested
// пропускается. Ошибки генератора и нехватка кредита возвращают письмо в
// requested без изменения счётчиков и не считаются ошибкой задачи.
// Ошибка возвращается только при сбое хранилища, чтобы очередь повторила доставку.
func (e *Engine) Generate(ctx context.Context, letterID string) (err error) {
	const op = "services.letters.Generate"
	log := e.log.With(slog.String("op", op), slog.String("letter_id", letterID))

	ctx, span := e.tracer.Start(ctx, "letters.Generate")
	span.SetAttributes(attribute.String("letter.id", letterID))
	defer func() { telemetry.EndSpan(span, err) }()

	current, err := e.store.GetLetter(ctx, letterID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("letter disappeared before generation")
		e.deps.Metrics.Generation(metrics.OutcomeSkipped, 0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if current.AIGeneratedContent != "" || current.Status != models.LetterRequested {
		log.Info("generation skipped", slog.String("status", string(current.Status)))
		e.deps.Metrics.Generation(metrics.OutcomeSkipped, 0)
		return nil
	}
	if e.deps.Generator == nil {
		log.Warn("generator is not configured, letter stays requested")
		return nil
	}

	letter, err := e.store.ClaimForGeneration(ctx, letterID)
	if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
		log.Info("letter already claimed by another worker")
		e.deps.Metrics.Generation(metrics.OutcomeSkipped, 0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	prompt := contentgen.BuildPrompt(*letter)
	start := e.now()
	result, genErr := e.generate(ctx, prompt)
	if genErr != nil {
		e.deps.Metrics.Generation(metrics.OutcomeFailure, e.now().Sub(start))
		log.Error("content generation failed", sl.Err(genErr))
		e.capture(ctx, genErr, map[string]string{"op": op, "letter_id": letterID})
		return e.reset(ctx, op, letterID)
	}

	_, err = e.store.CommitGeneration(ctx, letterID, models.GenerationResult{
		Prompt:      prompt.System + "\n\n" + prompt.User,
		Content:     result.Content,
		Summary:     result.Summary,
		GeneratedAt: e.now(),
	})
	switch {
	case errors.Is(err, storage.ErrNoCredit):
		e.deps.Metrics.Generation(metrics.OutcomeNoCredit, e.now().Sub(start))
		log.Warn("no credit left at commit, letter returned to requested")
		return e.reset(ctx, op, letterID)
	case err != nil:
		e.deps.Metrics.Generation(metrics.OutcomeFailure, e.now().Sub(start))
		log.Error("failed to commit generated content", sl.Err(err))
		e.capture(ctx, err, map[string]string{"op": op, "letter_id": letterID})
		if resetErr := e.reset(ctx, op, letterID); resetErr != nil {
			return resetErr
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	e.deps.Metrics.Generation(metrics.OutcomeSuccess, e.now().Sub(start))
	e.deps.Metrics.CreditDeducted()
	log.Info("letter generated, awaiting review")
	return nil
}

func (e *Engine) generate(ctx context.Context, prompt contentgen.Prompt) (contentgen.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout)
	defer cancel()

	result, err := e.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		return contentgen.Result{}, err
	}
	if result.Content == "" {
		return contentgen.Result{}, contentgen.ErrEmptyResponse
	}
	if result.Summary == "" {
		result.Summary = contentgen.GenericSummary
	}
	return result, nil
}

// reset возвращает письмо в requested. Выполняется и при отменённом контексте задачи.
func (e *Engine) reset(ctx context.Context, op, letterID string) error {
	err := e.store.ResetGeneration(context.WithoutCancel(ctx), letterID)
	if err == nil || errors.Is(err, storage.ErrConflict) {
		return nil
	}
	return fmt.Errorf("%s: reset: %w", op, err)
}

// Retry повторно ставит в очередь генерацию письма в статусе requested.
func (e *Engine) Retry(ctx context.Context, actor models.Principal, letterID string) (*models.Letter, error) {
	const op = "services.letters.Retry"
	if !policy.Allow(actor.Role, policy.ActionRetryGeneration) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	l, err := e.getLetter(ctx, letterID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !policy.CanAccessLetter(actor, l) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if l.Status != models.LetterRequested || l.AIGeneratedContent != "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}
	if !e.GeneratorAvailable() {
		return nil, fmt.Errorf("%s: %w", op, ErrGeneratorUnavailable)
	}
	if _, err := e.creditSubscription(ctx, l.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := e.deps.Dispatcher.Dispatch(ctx, l.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

// ReapStuck возвращает в requested письма, зависшие в generating дольше
// StuckAfter, и снова ставит их в очередь. Возвращает число сброшенных писем.
func (e *Engine) ReapStuck(ctx context.Context) (int, error) {
	const op = "services.letters.ReapStuck"
	log := e.log.With(slog.String("op", op))

	stuck, err := e.store.ListStuckGenerating(ctx, e.now().Add(-e.cfg.StuckAfter))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	reaped := 0
	for _, l := range stuck {
		if err := e.store.ResetGeneration(ctx, l.ID); err != nil {
			if !errors.Is(err, storage.ErrConflict) {
				log.Error("failed to reset stuck letter", slog.String("letter_id", l.ID), sl.Err(err))
			}
			continue
		}
		reaped++
		if err := e.deps.Dispatcher.Dispatch(ctx, l.ID); err != nil {
			log.Warn("failed to re-dispatch stuck letter", slog.String("letter_id", l.ID), sl.Err(err))
		}
	}
	if reaped > 0 {
		log.Info("reset stuck letters", slog.Int("count", reaped))
	}
	e.deps.Metrics.Reaped(reaped)
	return reaped, nil
}
