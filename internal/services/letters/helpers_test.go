package letters

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/legal-letters/internal/contentgen"
	"github.com/magabrotheeeer/legal-letters/internal/docrender"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/storage/memory"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, p contentgen.Prompt) (contentgen.Result, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, p contentgen.Prompt) (contentgen.Result, error) {
	g.mu.Lock()
	g.calls++
	fn := g.fn
	g.mu.Unlock()
	if fn == nil {
		return contentgen.Result{Content: "Dear Sir or Madam,\n\nPlease pay.", Summary: "Demand for payment"}, nil
	}
	return fn(ctx, p)
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, letterID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, letterID)
	return nil
}

func (d *recordingDispatcher) IDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

// recordingRenderer запоминает отрисованные письма и может имитировать сбой.
type recordingRenderer struct {
	next     Renderer
	mu       sync.Mutex
	rendered []models.Letter
	fail     bool
}

func (r *recordingRenderer) Render(ctx context.Context, l models.Letter) (string, error) {
	r.mu.Lock()
	r.rendered = append(r.rendered, l)
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return "", errors.New("renderer crashed")
	}
	return r.next.Render(ctx, l)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.LetterEvent
}

func (n *recordingNotifier) Publish(_ context.Context, _, _ string, message any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, message.(models.LetterEvent))
	return nil
}

type fixture struct {
	engine   *Engine
	store    *memory.Storage
	gen      *fakeGenerator
	disp     *recordingDispatcher
	renderer *recordingRenderer
	notifier *recordingNotifier
	owner    models.Principal
	other    models.Principal
	admin    models.Principal
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewSeeded()

	docs, err := docrender.NewStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		gen:      &fakeGenerator{},
		disp:     &recordingDispatcher{},
		renderer: &recordingRenderer{next: docrender.NewPDFRenderer(docs)},
		notifier: &recordingNotifier{},
	}
	f.engine = NewEngine(newNoopLogger(), store, Deps{
		Generator:  f.gen,
		Dispatcher: f.disp,
		Renderer:   f.renderer,
		Documents:  docs,
		Notifier:   f.notifier,
	}, Config{GenerationTimeout: time.Second, StuckAfter: 10 * time.Minute})

	f.owner = f.createUser(t, "owner@example.com", models.RoleUser)
	f.other = f.createUser(t, "other@example.com", models.RoleUser)
	f.admin = f.createUser(t, "admin@example.com", models.RoleAdmin)
	return f
}

func (f *fixture) createUser(t *testing.T, email string, role models.Role) models.Principal {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), models.User{
		Email: email, FirstName: "Jane", LastName: "Doe", Role: role,
	})
	require.NoError(t, err)
	return models.Principal{UserID: u.ID, Role: role}
}

func (f *fixture) grantCredits(t *testing.T, userID string, n int) *models.UserSubscription {
	t.Helper()
	sub, err := f.store.RecordPurchase(context.Background(), models.Purchase{
		EventID: "evt_" + userID + "_" + time.Now().Format(time.RFC3339Nano),
		Subscription: models.UserSubscription{
			UserID:           userID,
			PlanID:           "11111111-1111-1111-1111-111111111111",
			Status:           models.SubscriptionActive,
			LettersRemaining: n,
			StartedAt:        time.Now(),
		},
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) subscription(t *testing.T, id string) *models.UserSubscription {
	t.Helper()
	sub, err := f.store.GetSubscription(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func (f *fixture) letter(t *testing.T, id string) *models.Letter {
	t.Helper()
	l, err := f.store.GetLetter(context.Background(), id)
	require.NoError(t, err)
	return l
}

func letterRequest() models.LetterRequest {
	addr := models.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701"}
	return models.LetterRequest{
		Title:             "Unpaid invoice",
		SenderName:        "Jane Doe",
		SenderAddress:     addr,
		RecipientName:     "ACME Corp",
		RecipientAddress:  addr,
		Subject:           "Invoice #42",
		Conflict:          "Invoice unpaid for 90 days",
		DesiredResolution: "Pay within 14 days",
	}
}

// createGenerated создаёт письмо и прогоняет генерацию до reviewing.
func (f *fixture) createGenerated(t *testing.T) *models.Letter {
	t.Helper()
	ctx := context.Background()
	l, err := f.engine.Create(ctx, f.owner, letterRequest())
	require.NoError(t, err)
	require.NoError(t, f.engine.Generate(ctx, l.ID))
	got := f.letter(t, l.ID)
	require.Equal(t, models.LetterReviewing, got.Status)
	return got
}

// createCompleted доводит письмо до completed с документом.
func (f *fixture) createCompleted(t *testing.T) *models.Letter {
	t.Helper()
	l := f.createGenerated(t)
	completed := models.LetterCompleted
	done, err := f.engine.Update(context.Background(), f.admin, l.ID, models.LetterUpdate{Status: &completed})
	require.NoError(t, err)
	require.NotEmpty(t, done.PDFPath)
	return done
}
