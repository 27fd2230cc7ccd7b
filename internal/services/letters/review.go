package letters

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/magabrotheeeer/legal-letters/internal/lib/policy"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/rabbitmq"
	"github.com/magabrotheeeer/legal-letters/internal/telemetry"
)

// Update применяет правки юриста. Переход в completed синхронно отрисовывает
// объединённое письмо; сбой отрисовки не блокирует переход, документ остаётся пустым.
func (e *Engine) Update(ctx context.Context, actor models.Principal, letterID string, upd models.LetterUpdate) (*models.Letter, error) {
	const op = "services.letters.Update"
	log := e.log.With(slog.String("op", op), slog.String("letter_id", letterID))

	if !policy.Allow(actor.Role, policy.ActionReviewLetter) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if upd.Status != nil && *upd.Status != models.LetterReviewing && *upd.Status != models.LetterCompleted {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	current, err := e.getLetter(ctx, letterID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := checkReviewTransition(current.Status, upd.Status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := e.now()
	reviewer := actor.UserID
	patch := models.LetterPatch{
		Status:       upd.Status,
		FinalContent: upd.FinalContent,
		AdminNotes:   upd.AdminNotes,
		Title:        upd.Title,
		Subject:      upd.Subject,
		ReviewedBy:   &reviewer,
	}
	if upd.Status != nil && *upd.Status == models.LetterReviewing {
		patch.ReviewedAt = &now
	}

	completing := upd.Status != nil && *upd.Status == models.LetterCompleted && current.Status != models.LetterCompleted
	if completing {
		if current.ReviewedAt == nil {
			patch.ReviewedAt = &now
		}
		patch.CompletedAt = &now

		merged := current.Merge(upd)
		merged.CompletedAt = &now
		if path, err := e.render(ctx, merged); err != nil {
			log.Error("render failed, completing without document", sl.Err(err))
		} else {
			patch.PDFPath = &path
		}
	}

	updated, err := e.store.UpdateLetter(ctx, letterID, patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}

	if completing {
		e.notifyCompleted(ctx, updated)
	}
	return updated, nil
}

// checkReviewTransition допускает правки только сгенерированных писем:
// reviewing -> reviewing|completed, completed -> completed.
func checkReviewTransition(from models.LetterStatus, to *models.LetterStatus) error {
	switch from {
	case models.LetterRequested, models.LetterGenerating:
		return ErrInvalidStatus
	}
	if to == nil {
		return nil
	}
	switch from {
	case models.LetterReviewing:
		return nil
	case models.LetterCompleted:
		if *to == models.LetterCompleted {
			return nil
		}
	}
	return ErrInvalidStatus
}

// RenderAgain повторно отрисовывает завершённое письмо, например после
// сбоя отрисовки при завершении.
func (e *Engine) RenderAgain(ctx context.Context, actor models.Principal, letterID string) (*models.Letter, error) {
	const op = "services.letters.RenderAgain"
	if !policy.Allow(actor.Role, policy.ActionRenderLetter) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	l, err := e.getLetter(ctx, letterID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if l.Status != models.LetterCompleted && l.Status != models.LetterDownloaded {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStatus)
	}

	path, err := e.render(ctx, *l)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := e.store.UpdateLetter(ctx, letterID, models.LetterPatch{PDFPath: &path})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}
	return updated, nil
}

func (e *Engine) render(ctx context.Context, l models.Letter) (path string, err error) {
	ctx, span := e.tracer.Start(ctx, "letters.Render")
	span.SetAttributes(attribute.String("letter.id", l.ID))
	defer func() { telemetry.EndSpan(span, err) }()

	path, err = e.deps.Renderer.Render(ctx, l)
	if err != nil {
		e.deps.Metrics.Render(metrics.OutcomeFailure)
		e.capture(ctx, err, map[string]string{"op": "letters.render", "letter_id": l.ID})
		return "", err
	}
	e.deps.Metrics.Render(metrics.OutcomeSuccess)
	return path, nil
}

// notifyCompleted публикует событие о готовности письма. Ошибки только логируются.
func (e *Engine) notifyCompleted(ctx context.Context, l *models.Letter) {
	const op = "services.letters.notifyCompleted"
	if e.deps.Notifier == nil {
		return
	}
	log := e.log.With(slog.String("op", op), slog.String("letter_id", l.ID))

	owner, err := e.store.GetUser(ctx, l.UserID)
	if err != nil {
		log.Warn("failed to load letter owner", sl.Err(err))
		return
	}
	event := models.LetterEvent{
		LetterID: l.ID,
		UserID:   owner.ID,
		Email:    owner.Email,
		Name:     owner.FirstName,
		Title:    l.Title,
		Status:   string(l.Status),
	}
	if err := e.deps.Notifier.Publish(ctx, rabbitmq.ExchangeNotifications, rabbitmq.RoutingLetterCompleted, event); err != nil {
		log.Warn("failed to publish completion event", sl.Err(err))
	}
}
