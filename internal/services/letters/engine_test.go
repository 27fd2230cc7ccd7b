package letters

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/legal-letters/internal/contentgen"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

func TestEngine_Create(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture) models.Principal
		wantErr error
	}{
		{
			name: "user with credit",
			setup: func(t *testing.T, f *fixture) models.Principal {
				f.grantCredits(t, f.owner.UserID, 1)
				return f.owner
			},
		},
		{
			name:    "no subscription",
			setup:   func(_ *testing.T, f *fixture) models.Principal { return f.owner },
			wantErr: ErrNoCredit,
		},
		{
			name: "subscription exhausted",
			setup: func(t *testing.T, f *fixture) models.Principal {
				f.grantCredits(t, f.owner.UserID, 0)
				return f.owner
			},
			wantErr: ErrNoCredit,
		},
		{
			name:    "admin cannot request letters",
			setup:   func(_ *testing.T, f *fixture) models.Principal { return f.admin },
			wantErr: ErrForbidden,
		},
		{
			name: "generator not configured",
			setup: func(t *testing.T, f *fixture) models.Principal {
				f.grantCredits(t, f.owner.UserID, 1)
				f.engine.deps.Generator = nil
				return f.owner
			},
			wantErr: ErrGeneratorUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			actor := tt.setup(t, f)

			l, err := f.engine.Create(context.Background(), actor, letterRequest())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.disp.IDs())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.LetterRequested, l.Status)
			assert.Equal(t, actor.UserID, l.UserID)
			assert.NotEmpty(t, l.SubscriptionID)
			assert.Equal(t, "USA", l.SenderAddress.Country)
			assert.Empty(t, l.AIGeneratedContent)
			assert.Equal(t, []string{l.ID}, f.disp.IDs())
			assert.Zero(t, f.gen.Calls(), "generation must not run inside the request")
		})
	}
}

func TestEngine_Create_DispatchFailureKeepsLetter(t *testing.T) {
	f := newFixture(t)
	f.grantCredits(t, f.owner.UserID, 1)
	f.disp.err = errors.New("queue down")

	l, err := f.engine.Create(context.Background(), f.owner, letterRequest())
	require.NoError(t, err)
	assert.Equal(t, models.LetterRequested, f.letter(t, l.ID).Status)
}

func TestEngine_EndToEnd_LastCreditConsumed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 1)

	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)
	require.NoError(t, f.engine.Generate(ctx, l.ID))

	got := f.letter(t, l.ID)
	assert.Equal(t, models.LetterReviewing, got.Status)
	assert.NotEmpty(t, got.AIGeneratedContent)
	assert.Equal(t, "Demand for payment", got.AISummary)
	assert.NotNil(t, got.AIGeneratedAt)
	assert.Contains(t, got.AIPrompt, "Invoice #42")

	after := f.subscription(t, sub.ID)
	assert.Equal(t, 0, after.LettersRemaining)
	assert.Equal(t, 1, after.LettersUsed)

	_, err = f.engine.Create(ctx, f.owner, letterRequest())
	assert.ErrorIs(t, err, ErrNoCredit)
}

func TestEngine_Generate_AtMostOnceDeduction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 5)
	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.engine.Generate(ctx, l.ID))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.gen.Calls())
	assert.Equal(t, models.LetterReviewing, f.letter(t, l.ID).Status)
	after := f.subscription(t, sub.ID)
	assert.Equal(t, 4, after.LettersRemaining)
	assert.Equal(t, 1, after.LettersUsed)
}

func TestEngine_Generate_FailureConsumesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 2)
	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)

	f.gen.fn = func(context.Context, contentgen.Prompt) (contentgen.Result, error) {
		return contentgen.Result{}, errors.New("provider error")
	}
	for range 3 {
		require.NoError(t, f.engine.Generate(ctx, l.ID))
		got := f.letter(t, l.ID)
		assert.Equal(t, models.LetterRequested, got.Status)
		assert.Empty(t, got.AIGeneratedContent)
		after := f.subscription(t, sub.ID)
		assert.Equal(t, 2, after.LettersRemaining)
		assert.Equal(t, 0, after.LettersUsed)
	}

	f.gen.fn = nil
	require.NoError(t, f.engine.Generate(ctx, l.ID))
	assert.Equal(t, models.LetterReviewing, f.letter(t, l.ID).Status)
	assert.Equal(t, 1, f.subscription(t, sub.ID).LettersRemaining)
}

func TestEngine_Generate_TimeoutResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 1)
	f.engine.cfg.GenerationTimeout = 20 * time.Millisecond
	f.gen.fn = func(ctx context.Context, _ contentgen.Prompt) (contentgen.Result, error) {
		<-ctx.Done()
		return contentgen.Result{}, ctx.Err()
	}

	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)
	require.NoError(t, f.engine.Generate(ctx, l.ID))

	assert.Equal(t, models.LetterRequested, f.letter(t, l.ID).Status)
	assert.Equal(t, 1, f.subscription(t, sub.ID).LettersRemaining)
}

func TestEngine_Generate_EmptyContentIsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 1)
	f.gen.fn = func(context.Context, contentgen.Prompt) (contentgen.Result, error) {
		return contentgen.Result{}, nil
	}

	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)
	require.NoError(t, f.engine.Generate(ctx, l.ID))

	assert.Equal(t, models.LetterRequested, f.letter(t, l.ID).Status)
	assert.Equal(t, 1, f.subscription(t, sub.ID).LettersRemaining)
}

func TestEngine_Generate_CreditRecheckedAtCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 1)

	first, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)
	second, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)

	require.NoError(t, f.engine.Generate(ctx, first.ID))
	require.NoError(t, f.engine.Generate(ctx, second.ID))

	assert.Equal(t, models.LetterReviewing, f.letter(t, first.ID).Status)
	blocked := f.letter(t, second.ID)
	assert.Equal(t, models.LetterRequested, blocked.Status)
	assert.Empty(t, blocked.AIGeneratedContent)

	after := f.subscription(t, sub.ID)
	assert.Equal(t, 0, after.LettersRemaining)
	assert.Equal(t, 1, after.LettersUsed)
}

func TestEngine_Generate_ConcurrentLettersConserveCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 5)

	ids := make([]string, 0, 8)
	for range 8 {
		l, err := f.engine.Create(ctx, f.owner, letterRequest())
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.engine.Generate(ctx, id))
		}()
	}
	wg.Wait()

	reviewing := 0
	for _, id := range ids {
		if f.letter(t, id).Status == models.LetterReviewing {
			reviewing++
		}
	}
	assert.Equal(t, 5, reviewing)

	after := f.subscription(t, sub.ID)
	assert.Equal(t, 0, after.LettersRemaining)
	assert.Equal(t, 5, after.LettersUsed)
	assert.Equal(t, 5, after.LettersRemaining+after.LettersUsed)
}

func TestEngine_Generate_SkipsFinishedLetters(t *testing.T) {
	f := newFixture(t)
	f.grantCredits(t, f.owner.UserID, 2)
	l := f.createGenerated(t)
	calls := f.gen.Calls()

	require.NoError(t, f.engine.Generate(context.Background(), l.ID))
	require.NoError(t, f.engine.Generate(context.Background(), "missing"))

	assert.Equal(t, calls, f.gen.Calls())
	assert.Equal(t, models.LetterReviewing, f.letter(t, l.ID).Status)
}

func TestEngine_Update_CompleteRendersMergedView(t *testing.T) {
	f := newFixture(t)
	f.grantCredits(t, f.owner.UserID, 1)
	l := f.createGenerated(t)

	completed := models.LetterCompleted
	final := "Dear ACME,\n\nFinal attorney-approved text."
	done, err := f.engine.Update(context.Background(), f.admin, l.ID, models.LetterUpdate{
		Status:       &completed,
		FinalContent: &final,
	})
	require.NoError(t, err)

	assert.Equal(t, models.LetterCompleted, done.Status)
	assert.NotEmpty(t, done.PDFPath)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, final, done.FinalContent)
	assert.Equal(t, f.admin.UserID, done.ReviewedBy)

	require.Len(t, f.renderer.rendered, 1)
	assert.Equal(t, final, f.renderer.rendered[0].Body())

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "owner@example.com", f.notifier.events[0].Email)
	assert.Equal(t, string(models.LetterCompleted), f.notifier.events[0].Status)
}

func TestEngine_Update_RenderFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.grantCredits(t, f.owner.UserID, 1)
	l := f.createGenerated(t)
	f.renderer.fail = true

	completed := models.LetterCompleted
	done, err := f.engine.Update(context.Background(), f.admin, l.ID, models.LetterUpdate{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.LetterCompleted, done.Status)
	assert.Empty(t, done.PDFPath)
	assert.NotNil(t, done.CompletedAt)

	_, _, err = f.engine.Download(context.Background(), f.owner, l.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	f.renderer.fail = false
	rendered, err := f.engine.RenderAgain(context.Background(), f.admin, l.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rendered.PDFPath)
	assert.Equal(t, models.LetterCompleted, rendered.Status)
}

func TestEngine_Update_Rules(t *testing.T) {
	reviewing := models.LetterReviewing
	completed := models.LetterCompleted
	downloaded := models.LetterDownloaded
	notes := "Please add the invoice number"

	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture) *models.Letter
		actor   func(f *fixture) models.Principal
		update  models.LetterUpdate
		wantErr error
	}{
		{
			name:    "owner cannot review",
			prepare: func(t *testing.T, f *fixture) *models.Letter { return f.createGenerated(t) },
			actor:   func(f *fixture) models.Principal { return f.owner },
			update:  models.LetterUpdate{Status: &completed},
			wantErr: ErrForbidden,
		},
		{
			name:    "status outside review set",
			prepare: func(t *testing.T, f *fixture) *models.Letter { return f.createGenerated(t) },
			actor:   func(f *fixture) models.Principal { return f.admin },
			update:  models.LetterUpdate{Status: &downloaded},
			wantErr: ErrInvalidStatus,
		},
		{
			name: "letter still requested",
			prepare: func(t *testing.T, f *fixture) *models.Letter {
				l, err := f.engine.Create(context.Background(), f.owner, letterRequest())
				require.NoError(t, err)
				return l
			},
			actor:   func(f *fixture) models.Principal { return f.admin },
			update:  models.LetterUpdate{AdminNotes: &notes},
			wantErr: ErrInvalidStatus,
		},
		{
			name: "requested letter cannot be completed by hand",
			prepare: func(t *testing.T, f *fixture) *models.Letter {
				l, err := f.engine.Create(context.Background(), f.owner, letterRequest())
				require.NoError(t, err)
				return l
			},
			actor:   func(f *fixture) models.Principal { return f.admin },
			update:  models.LetterUpdate{Status: &completed},
			wantErr: ErrInvalidStatus,
		},
		{
			name: "downloaded letter cannot be completed again",
			prepare: func(t *testing.T, f *fixture) *models.Letter {
				l := f.createCompleted(t)
				_, doc, err := f.engine.Download(context.Background(), f.owner, l.ID)
				require.NoError(t, err)
				require.NoError(t, doc.Content.Close())
				return l
			},
			actor:   func(f *fixture) models.Principal { return f.admin },
			update:  models.LetterUpdate{Status: &completed},
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "completed cannot go back to reviewing",
			prepare: func(t *testing.T, f *fixture) *models.Letter { return f.createCompleted(t) },
			actor:   func(f *fixture) models.Principal { return f.admin },
			update:  models.LetterUpdate{Status: &reviewing},
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "send back with notes",
			prepare: func(t *testing.T, f *fixture) *models.Letter { return f.createGenerated(t) },
			actor:   func(f *fixture) models.Principal { return f.admin },
			update:  models.LetterUpdate{Status: &reviewing, AdminNotes: &notes},
		},
		{
			name:    "unknown letter",
			prepare: func(_ *testing.T, _ *fixture) *models.Letter { return &models.Letter{ID: "missing"} },
			actor:   func(f *fixture) models.Principal { return f.admin },
			update:  models.LetterUpdate{AdminNotes: &notes},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.grantCredits(t, f.owner.UserID, 3)
			l := tt.prepare(t, f)

			got, err := f.engine.Update(context.Background(), tt.actor(f), l.ID, tt.update)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.LetterReviewing, got.Status)
			assert.Equal(t, notes, got.AdminNotes)
			assert.NotNil(t, got.ReviewedAt)
			assert.Empty(t, f.notifier.events)
		})
	}
}

func TestEngine_Download_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.grantCredits(t, f.owner.UserID, 1)
	l := f.createCompleted(t)
	ctx := context.Background()

	read := func() (*models.Letter, []byte) {
		got, doc, err := f.engine.Download(ctx, f.owner, l.ID)
		require.NoError(t, err)
		defer doc.Content.Close()
		data, err := io.ReadAll(doc.Content)
		require.NoError(t, err)
		return got, data
	}

	first, firstBytes := read()
	second, secondBytes := read()

	assert.Equal(t, models.LetterDownloaded, first.Status)
	assert.Equal(t, models.LetterDownloaded, second.Status)
	require.NotNil(t, first.DownloadedAt)
	assert.True(t, first.DownloadedAt.Equal(*second.DownloadedAt))
	assert.True(t, bytes.Equal(firstBytes, secondBytes))
	assert.True(t, bytes.HasPrefix(firstBytes, []byte("%PDF")))
}

func TestEngine_Download_Access(t *testing.T) {
	f := newFixture(t)
	f.grantCredits(t, f.owner.UserID, 2)
	ctx := context.Background()
	done := f.createCompleted(t)
	pending := f.createGenerated(t)

	tests := []struct {
		name    string
		actor   models.Principal
		id      string
		wantErr error
	}{
		{name: "other user", actor: f.other, id: done.ID, wantErr: ErrForbidden},
		{name: "admin uses owner route", actor: f.admin, id: done.ID, wantErr: ErrForbidden},
		{name: "not completed yet", actor: f.owner, id: pending.ID, wantErr: ErrNotReady},
		{name: "unknown letter", actor: f.owner, id: "missing", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.engine.Download(ctx, tt.actor, tt.id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, models.LetterCompleted, f.letter(t, done.ID).Status)
}

func TestEngine_AdminDownload_DoesNotMutate(t *testing.T) {
	f := newFixture(t)
	f.grantCredits(t, f.owner.UserID, 1)
	l := f.createCompleted(t)
	ctx := context.Background()

	got, doc, err := f.engine.AdminDownload(ctx, f.admin, l.ID)
	require.NoError(t, err)
	require.NoError(t, doc.Content.Close())
	assert.Equal(t, models.LetterCompleted, got.Status)
	assert.Equal(t, models.LetterCompleted, f.letter(t, l.ID).Status)
	assert.Nil(t, f.letter(t, l.ID).DownloadedAt)

	_, _, err = f.engine.AdminDownload(ctx, f.owner, l.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEngine_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantCredits(t, f.owner.UserID, 2)
	f.grantCredits(t, f.other.UserID, 1)

	mine, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)
	_, err = f.engine.Create(ctx, f.other, letterRequest())
	require.NoError(t, err)

	got, err := f.engine.Get(ctx, f.owner, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.engine.Get(ctx, f.other, mine.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.engine.Get(ctx, f.admin, mine.ID)
	assert.NoError(t, err)

	_, err = f.engine.Get(ctx, f.owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	own, err := f.engine.List(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	all, err := f.engine.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEngine_Retry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantCredits(t, f.owner.UserID, 2)

	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)

	_, err = f.engine.Retry(ctx, f.owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{l.ID, l.ID}, f.disp.IDs())

	_, err = f.engine.Retry(ctx, f.other, l.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.engine.Generate(ctx, l.ID))
	_, err = f.engine.Retry(ctx, f.admin, l.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestEngine_ReapStuck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.grantCredits(t, f.owner.UserID, 1)

	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)
	_, err = f.store.ClaimForGeneration(ctx, l.ID)
	require.NoError(t, err)

	n, err := f.engine.ReapStuck(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh claims are not stuck")

	f.engine.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = f.engine.ReapStuck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.LetterRequested, f.letter(t, l.ID).Status)
	assert.Equal(t, []string{l.ID, l.ID}, f.disp.IDs())
	assert.Equal(t, 1, f.subscription(t, sub.ID).LettersRemaining)
}
