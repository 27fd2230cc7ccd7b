package letters

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/legal-letters/internal/docrender"
	"github.com/magabrotheeeer/legal-letters/internal/lib/policy"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

// Виды скачивания для метрик.
const (
	downloadOwner = "owner"
	downloadAdmin = "admin"
)

// Download отдаёт документ владельцу. Первое скачивание переводит письмо
// в downloaded, повторные состояние не меняют. Вызывающий закрывает Content.
func (e *Engine) Download(ctx context.Context, actor models.Principal, letterID string) (*models.Letter, *docrender.Document, error) {
	const op = "services.letters.Download"
	if !policy.Allow(actor.Role, policy.ActionDownloadLetter) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	l, err := e.getLetter(ctx, letterID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if !policy.IsOwner(actor, l) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if l.Status != models.LetterCompleted && l.Status != models.LetterDownloaded {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrNotReady)
	}

	doc, err := e.openDocument(l)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := e.store.MarkDownloaded(ctx, l.ID, e.now())
	if err != nil {
		_ = doc.Content.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, mapStoreErr(err))
	}
	e.deps.Metrics.Download(downloadOwner)
	return updated, doc, nil
}

// AdminDownload отдаёт документ администратору без изменения статуса письма.
func (e *Engine) AdminDownload(ctx context.Context, actor models.Principal, letterID string) (*models.Letter, *docrender.Document, error) {
	const op = "services.letters.AdminDownload"
	if !policy.Allow(actor.Role, policy.ActionAdminDownload) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	l, err := e.getLetter(ctx, letterID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	doc, err := e.openDocument(l)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	e.deps.Metrics.Download(downloadAdmin)
	return l, doc, nil
}

func (e *Engine) openDocument(l *models.Letter) (*docrender.Document, error) {
	if !l.HasDocument() {
		return nil, ErrNotReady
	}
	doc, err := e.deps.Documents.Open(l.PDFPath)
	if errors.Is(err, docrender.ErrMissing) || errors.Is(err, docrender.ErrInvalidName) {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return ErrInvalidStatus
	case errors.Is(err, storage.ErrNoCredit):
		return ErrNoCredit
	}
	return err
}
