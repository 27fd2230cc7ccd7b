package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

// CreateLetter сохраняет новое письмо в статусе requested.
func (s *Storage) CreateLetter(ctx context.Context, l models.Letter) (*models.Letter, error) {
	const op = "storage.memory.CreateLetter"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := s.now()
	l.Status = models.LetterRequested
	l.CreatedAt = now
	l.UpdatedAt = now
	s.letters[l.ID] = l
	return &l, nil
}

// GetLetter возвращает письмо по ID.
func (s *Storage) GetLetter(ctx context.Context, id string) (*models.Letter, error) {
	const op = "storage.memory.GetLetter"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.letters[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &l, nil
}

func sortLettersDesc(list []*models.Letter) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

// ListLettersByUser возвращает письма пользователя, новые первыми.
func (s *Storage) ListLettersByUser(ctx context.Context, userID string) ([]*models.Letter, error) {
	const op = "storage.memory.ListLettersByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.Letter, 0)
	for _, l := range s.letters {
		if l.UserID == userID {
			result = append(result, &l)
		}
	}
	sortLettersDesc(result)
	return result, nil
}

// ListLetters возвращает все письма, новые первыми. limit <= 0 снимает ограничение.
func (s *Storage) ListLetters(ctx context.Context, limit int) ([]*models.Letter, error) {
	const op = "storage.memory.ListLetters"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.Letter, 0, len(s.letters))
	for _, l := range s.letters {
		result = append(result, &l)
	}
	sortLettersDesc(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountLetters возвращает общее число писем.
func (s *Storage) CountLetters(ctx context.Context) (int, error) {
	const op = "storage.memory.CountLetters"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.letters), nil
}

// UpdateLetter применяет частичное обновление.
func (s *Storage) UpdateLetter(ctx context.Context, id string, patch models.LetterPatch) (*models.Letter, error) {
	const op = "storage.memory.UpdateLetter"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.letters[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if patch.Status != nil {
		l.Status = *patch.Status
	}
	if patch.FinalContent != nil {
		l.FinalContent = *patch.FinalContent
	}
	if patch.AdminNotes != nil {
		l.AdminNotes = *patch.AdminNotes
	}
	if patch.Title != nil {
		l.Title = *patch.Title
	}
	if patch.Subject != nil {
		l.Subject = *patch.Subject
	}
	if patch.ReviewedBy != nil {
		l.ReviewedBy = *patch.ReviewedBy
	}
	if patch.PDFPath != nil {
		l.PDFPath = *patch.PDFPath
	}
	if patch.ReviewedAt != nil {
		at := *patch.ReviewedAt
		l.ReviewedAt = &at
	}
	if patch.CompletedAt != nil {
		at := *patch.CompletedAt
		l.CompletedAt = &at
	}
	l.UpdatedAt = s.now()
	s.letters[id] = l
	return &l, nil
}

// ClaimForGeneration переводит письмо requested -> generating, если у него
// ещё нет сгенерированного содержимого. Иначе возвращает ErrConflict.
func (s *Storage) ClaimForGeneration(ctx context.Context, id string) (*models.Letter, error) {
	const op = "storage.memory.ClaimForGeneration"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.letters[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if l.Status != models.LetterRequested || l.AIGeneratedContent != "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	l.Status = models.LetterGenerating
	l.UpdatedAt = s.now()
	s.letters[id] = l
	return &l, nil
}

// CommitGeneration одним шагом списывает кредит с активной подписки
// владельца и сохраняет результат генерации, переводя письмо в reviewing.
func (s *Storage) CommitGeneration(ctx context.Context, id string, res models.GenerationResult) (*models.Letter, error) {
	const op = "storage.memory.CommitGeneration"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.letters[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if l.Status != models.LetterGenerating || l.AIGeneratedContent != "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	sub, ok := s.activeSubscriptionLocked(l.UserID)
	if !ok || sub.LettersRemaining <= 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNoCredit)
	}

	sub.LettersRemaining--
	sub.LettersUsed++
	s.subscriptions[sub.ID] = sub

	at := res.GeneratedAt
	l.SubscriptionID = sub.ID
	l.AIPrompt = res.Prompt
	l.AIGeneratedContent = res.Content
	l.AISummary = res.Summary
	l.AIGeneratedAt = &at
	l.Status = models.LetterReviewing
	l.UpdatedAt = s.now()
	s.letters[id] = l
	return &l, nil
}

// ResetGeneration возвращает письмо из generating в requested.
func (s *Storage) ResetGeneration(ctx context.Context, id string) error {
	const op = "storage.memory.ResetGeneration"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.letters[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if l.Status != models.LetterGenerating {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	l.Status = models.LetterRequested
	l.UpdatedAt = s.now()
	s.letters[id] = l
	return nil
}

// MarkDownloaded фиксирует первое скачивание: completed -> downloaded.
// Для уже скачанного письма ничего не меняет.
func (s *Storage) MarkDownloaded(ctx context.Context, id string, at time.Time) (*models.Letter, error) {
	const op = "storage.memory.MarkDownloaded"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.letters[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	switch l.Status {
	case models.LetterDownloaded:
		return &l, nil
	case models.LetterCompleted:
	default:
		return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	l.Status = models.LetterDownloaded
	l.DownloadedAt = &at
	l.UpdatedAt = s.now()
	s.letters[id] = l
	return &l, nil
}

// ListStuckGenerating возвращает письма, находящиеся в generating дольше,
// чем до момента before.
func (s *Storage) ListStuckGenerating(ctx context.Context, before time.Time) ([]*models.Letter, error) {
	const op = "storage.memory.ListStuckGenerating"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*models.Letter, 0)
	for _, l := range s.letters {
		if l.Status == models.LetterGenerating && l.UpdatedAt.Before(before) {
			result = append(result, &l)
		}
	}
	return result, nil
}
