package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

const letterColumns = `id, user_id, subscription_id, title, sender_name, sender_firm_name, sender_address,
	recipient_name, recipient_address, subject, conflict, desired_resolution, additional_notes,
	ai_prompt, ai_generated_content, ai_summary, final_content, status, admin_notes, reviewed_by,
	pdf_path, created_at, updated_at, ai_generated_at, reviewed_at, completed_at, downloaded_at`

func scanLetter(row rowScanner) (*models.Letter, error) {
	var (
		l                                                  models.Letter
		subID, generated                                   sql.NullString
		senderAddr, recipientAddr                          []byte
		status                                             string
		generatedAt, reviewedAt, completedAt, downloadedAt sql.NullTime
	)
	if err := row.Scan(&l.ID, &l.UserID, &subID, &l.Title, &l.SenderName, &l.SenderFirmName, &senderAddr,
		&l.RecipientName, &recipientAddr, &l.Subject, &l.Conflict, &l.DesiredResolution, &l.AdditionalNotes,
		&l.AIPrompt, &generated, &l.AISummary, &l.FinalContent, &status, &l.AdminNotes, &l.ReviewedBy,
		&l.PDFPath, &l.CreatedAt, &l.UpdatedAt, &generatedAt, &reviewedAt, &completedAt, &downloadedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(senderAddr, &l.SenderAddress); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := json.Unmarshal(recipientAddr, &l.RecipientAddress); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	l.SubscriptionID = subID.String
	l.AIGeneratedContent = generated.String
	l.Status = models.LetterStatus(status)
	l.AIGeneratedAt = timePtr(generatedAt)
	l.ReviewedAt = timePtr(reviewedAt)
	l.CompletedAt = timePtr(completedAt)
	l.DownloadedAt = timePtr(downloadedAt)
	return &l, nil
}

// CreateLetter вставляет письмо в статусе requested.
func (s *Storage) CreateLetter(ctx context.Context, l models.Letter) (*models.Letter, error) {
	const op = "storage.CreateLetter"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	senderAddr, err := json.Marshal(l.SenderAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	recipientAddr, err := json.Marshal(l.RecipientAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO letters (user_id, subscription_id, title, sender_name, sender_firm_name, sender_address,
				  recipient_name, recipient_address, subject, conflict, desired_resolution, additional_notes, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'requested')
			  RETURNING ` + letterColumns
	created, err := scanLetter(s.DB.QueryRowContext(ctx, query,
		l.UserID, nullString(l.SubscriptionID), l.Title, l.SenderName, l.SenderFirmName, string(senderAddr),
		l.RecipientName, string(recipientAddr), l.Subject, l.Conflict, l.DesiredResolution, l.AdditionalNotes))
	if err != nil {
		return nil, mapError(op, err)
	}
	return created, nil
}

// GetLetter возвращает письмо по ID.
func (s *Storage) GetLetter(ctx context.Context, id string) (*models.Letter, error) {
	const op = "storage.GetLetter"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	l, err := scanLetter(s.DB.QueryRowContext(ctx, `SELECT `+letterColumns+` FROM letters WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return l, nil
}

func (s *Storage) queryLetters(ctx context.Context, op, query string, args ...any) ([]*models.Letter, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Letter
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListLettersByUser возвращает письма пользователя, новые первыми.
func (s *Storage) ListLettersByUser(ctx context.Context, userID string) ([]*models.Letter, error) {
	const op = "storage.ListLettersByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryLetters(ctx, op,
		`SELECT `+letterColumns+` FROM letters WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListLetters возвращает все письма, новые первыми. limit <= 0 снимает ограничение.
func (s *Storage) ListLetters(ctx context.Context, limit int) ([]*models.Letter, error) {
	const op = "storage.ListLetters"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return s.queryLetters(ctx, op, `SELECT `+letterColumns+` FROM letters ORDER BY created_at DESC`)
	}
	return s.queryLetters(ctx, op,
		`SELECT `+letterColumns+` FROM letters ORDER BY created_at DESC LIMIT $1`, limit)
}

// CountLetters возвращает общее число писем.
func (s *Storage) CountLetters(ctx context.Context) (int, error) {
	const op = "storage.CountLetters"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func statusArg(st *models.LetterStatus) *string {
	if st == nil {
		return nil
	}
	v := string(*st)
	return &v
}

// UpdateLetter применяет частичное обновление. Nil-поля не изменяются.
func (s *Storage) UpdateLetter(ctx context.Context, id string, patch models.LetterPatch) (*models.Letter, error) {
	const op = "storage.UpdateLetter"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE letters SET
				status        = COALESCE($2::text, status),
				final_content = COALESCE($3::text, final_content),
				admin_notes   = COALESCE($4::text, admin_notes),
				title         = COALESCE($5::text, title),
				subject       = COALESCE($6::text, subject),
				reviewed_by   = COALESCE($7::text, reviewed_by),
				pdf_path      = COALESCE($8::text, pdf_path),
				reviewed_at   = COALESCE($9::timestamptz, reviewed_at),
				completed_at  = COALESCE($10::timestamptz, completed_at),
				updated_at    = now()
			  WHERE id = $1
			  RETURNING ` + letterColumns
	l, err := scanLetter(s.DB.QueryRowContext(ctx, query, id,
		statusArg(patch.Status), patch.FinalContent, patch.AdminNotes, patch.Title, patch.Subject,
		patch.ReviewedBy, patch.PDFPath, patch.ReviewedAt, patch.CompletedAt))
	if err != nil {
		return nil, mapError(op, err)
	}
	return l, nil
}

// ClaimForGeneration переводит письмо requested -> generating, только если
// у него ещё нет сгенерированного содержимого.
func (s *Storage) ClaimForGeneration(ctx context.Context, id string) (*models.Letter, error) {
	const op = "storage.ClaimForGeneration"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	l, err := scanLetter(s.DB.QueryRowContext(ctx, `UPDATE letters
		SET status = 'generating', updated_at = now()
		WHERE id = $1 AND status = 'requested' AND ai_generated_content IS NULL
		RETURNING `+letterColumns, id))
	if err == nil {
		return l, nil
	}
	return nil, s.explainMiss(ctx, op, id, err)
}

// CommitGeneration в одной транзакции списывает кредит с активной подписки
// владельца и сохраняет результат, переводя письмо в reviewing.
// При отсутствии кредита ничего не изменяется и возвращается ErrNoCredit.
func (s *Storage) CommitGeneration(ctx context.Context, id string, res models.GenerationResult) (*models.Letter, error) {
	const op = "storage.CommitGeneration"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID, status string
	var hasContent bool
	err = tx.QueryRowContext(ctx, `SELECT user_id, status, ai_generated_content IS NOT NULL
		FROM letters WHERE id = $1 FOR UPDATE`, id).Scan(&userID, &status, &hasContent)
	if err != nil {
		return nil, mapError(op, err)
	}
	if status != string(models.LetterGenerating) || hasContent {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	var subID string
	err = tx.QueryRowContext(ctx, `UPDATE user_subscriptions
		SET letters_remaining = letters_remaining - 1, letters_used = letters_used + 1
		WHERE user_id = $1 AND status = 'active' AND letters_remaining > 0
		RETURNING id`, userID).Scan(&subID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNoCredit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l, err := scanLetter(tx.QueryRowContext(ctx, `UPDATE letters
		SET subscription_id = $2, ai_prompt = $3, ai_generated_content = $4, ai_summary = $5,
			ai_generated_at = $6, status = 'reviewing', updated_at = now()
		WHERE id = $1
		RETURNING `+letterColumns, id, subID, res.Prompt, res.Content, res.Summary, res.GeneratedAt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

// ResetGeneration возвращает письмо из generating в requested.
func (s *Storage) ResetGeneration(ctx context.Context, id string) error {
	const op = "storage.ResetGeneration"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE letters SET status = 'requested', updated_at = now()
		WHERE id = $1 AND status = 'generating'`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return s.explainMiss(ctx, op, id, sql.ErrNoRows)
	}
	return nil
}

// MarkDownloaded фиксирует первое скачивание. Для уже скачанного письма
// возвращает его без изменений.
func (s *Storage) MarkDownloaded(ctx context.Context, id string, at time.Time) (*models.Letter, error) {
	const op = "storage.MarkDownloaded"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	l, err := scanLetter(s.DB.QueryRowContext(ctx, `UPDATE letters
		SET status = 'downloaded', downloaded_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'completed'
		RETURNING `+letterColumns, id, at))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	current, err := s.GetLetter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current.Status == models.LetterDownloaded {
		return current, nil
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
}

// ListStuckGenerating возвращает письма в generating, не обновлявшиеся с момента before.
func (s *Storage) ListStuckGenerating(ctx context.Context, before time.Time) ([]*models.Letter, error) {
	const op = "storage.ListStuckGenerating"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryLetters(ctx, op, `SELECT `+letterColumns+` FROM letters
		WHERE status = 'generating' AND updated_at < $1`, before)
}

// explainMiss различает отсутствие письма и неподходящее состояние
// после условного UPDATE, не затронувшего строк.
func (s *Storage) explainMiss(ctx context.Context, op, id string, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var exists bool
	if err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM letters WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapError(op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, storage.ErrConflict)
}
