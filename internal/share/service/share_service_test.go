package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"docshare/internal/audit"
	docdomain "docshare/internal/document/domain"
	"docshare/internal/share/domain"
	"docshare/internal/share/repository"
)

// fakeGrantRepo is an in-memory grant store. Create enforces the same
// active-triple rule the partial unique index enforces in Postgres.
type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*domain.Grant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]*domain.Grant)}
}

func (f *fakeGrantRepo) Create(ctx context.Context, g *domain.Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.grants {
		if existing.Active && existing.DocumentID == g.DocumentID &&
			existing.GrantorID == g.GrantorID && existing.GranteeID == g.GranteeID {
			return repository.ErrDuplicateActiveGrant
		}
	}
	cp := *g
	f.grants[g.ID] = &cp
	return nil
}

func (f *fakeGrantRepo) GetByID(ctx context.Context, id string) (*domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGrantRepo) FindActive(ctx context.Context, documentID, grantorID, granteeID string) (*domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants {
		if g.Active && g.DocumentID == documentID && g.GrantorID == grantorID && g.GranteeID == granteeID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeGrantRepo) ListByGrantor(ctx context.Context, grantorID string) ([]*domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Grant
	for _, g := range f.grants {
		if g.GrantorID == grantorID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeGrantRepo) ListByGrantee(ctx context.Context, granteeID string) ([]*domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Grant
	for _, g := range f.grants {
		if g.GranteeID == granteeID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeGrantRepo) Deactivate(ctx context.Context, id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.grants[id]; ok {
		g.Active = false
		g.UpdatedAt = now
	}
	return nil
}

func (f *fakeGrantRepo) RecordAccess(ctx context.Context, id string, now time.Time) (*domain.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[id]
	if !ok {
		return nil, nil
	}
	g.AccessCount++
	t := now
	g.LastAccessedAt = &t
	g.UpdatedAt = now
	cp := *g
	return &cp, nil
}

func (f *fakeGrantRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, g := range f.grants {
		if g.Active && !now.Before(g.ExpiresAt) {
			g.Active = false
			g.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]*docdomain.Document
	refs map[string][]docdomain.ShareRef
}

func newFakeDocs(docs ...*docdomain.Document) *fakeDocs {
	f := &fakeDocs{docs: make(map[string]*docdomain.Document), refs: make(map[string][]docdomain.ShareRef)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocs) FindOwned(ctx context.Context, id, ownerID string) (*docdomain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.OwnerID != ownerID {
		return nil, nil
	}
	return d, nil
}

func (f *fakeDocs) GetByID(ctx context.Context, id string) (*docdomain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (f *fakeDocs) AppendShareRef(ctx context.Context, docID string, ref docdomain.ShareRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[docID] = append(f.refs[docID], ref)
	return nil
}

type fakeUsers struct {
	byEmail map[string]*Party
	byID    map[string]*Party
}

func newFakeUsers(parties ...*Party) *fakeUsers {
	f := &fakeUsers{byEmail: make(map[string]*Party), byID: make(map[string]*Party)}
	for _, p := range parties {
		f.byEmail[p.Email] = p
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*Party, error) {
	return f.byID[id], nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*Party, error) {
	return f.byEmail[email], nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (f *fakeNotifier) Deliver(ctx context.Context, recipient, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, recipient)
	return nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://blobs.example/" + key, nil
}

const grantTTL = 30 * 24 * time.Hour

type fixture struct {
	svc      *ShareService
	repo     *fakeGrantRepo
	docs     *fakeDocs
	notifier *fakeNotifier
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeGrantRepo()
	docs := newFakeDocs(
		&docdomain.Document{ID: "doc-1", OwnerID: "alice", Title: "Passport", ObjectKey: "documents/k1"},
		&docdomain.Document{ID: "doc-2", OwnerID: "bob", Title: "Degree", ObjectKey: "documents/k2"},
	)
	users := newFakeUsers(
		&Party{ID: "alice", Name: "Alice", Email: "alice@example.com"},
		&Party{ID: "bob", Name: "Bob", Email: "bob@example.com"},
	)
	notifier := &fakeNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewShareService(repo, docs, users, fakePresigner{}, notifier, audit.Nop(), clock, grantTTL, nil)
	return &fixture{svc: svc, repo: repo, docs: docs, notifier: notifier, clock: clock}
}

func (fx *fixture) share(t *testing.T, in CreateInput) *domain.Grant {
	t.Helper()
	g, err := fx.svc.Create(context.Background(), "alice", in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return g
}

func TestCreate_Defaults(t *testing.T) {
	fx := newFixture(t)
	g := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})

	if g.Permission != domain.PermissionView {
		t.Errorf("permission = %q, want view default", g.Permission)
	}
	if !g.Active {
		t.Error("new grant should be active")
	}
	if g.AccessCount != 0 {
		t.Errorf("access_count = %d, want 0", g.AccessCount)
	}
	wantExpiry := fx.clock.Now().UTC().Add(grantTTL)
	if !g.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expires_at = %v, want %v", g.ExpiresAt, wantExpiry)
	}
	if len(fx.notifier.delivered) != 1 || fx.notifier.delivered[0] != "bob@example.com" {
		t.Errorf("notifications = %v, want one to bob", fx.notifier.delivered)
	}
	if refs := fx.docs.refs["doc-1"]; len(refs) != 1 || refs[0].UserID != "bob" {
		t.Errorf("share refs = %v, want one for bob", refs)
	}
}

func TestCreate_ErrorOrdering(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Create(ctx, "alice", CreateInput{DocumentID: "missing", GranteeEmail: "bob@example.com"}); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("unknown document: err = %v, want ErrDocumentNotFound", err)
	}
	// doc-2 exists but belongs to bob
	if _, err := fx.svc.Create(ctx, "alice", CreateInput{DocumentID: "doc-2", GranteeEmail: "bob@example.com"}); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("unowned document: err = %v, want ErrDocumentNotFound", err)
	}
	if _, err := fx.svc.Create(ctx, "alice", CreateInput{DocumentID: "doc-1", GranteeEmail: "nobody@example.com"}); !errors.Is(err, ErrGranteeNotFound) {
		t.Errorf("unknown grantee: err = %v, want ErrGranteeNotFound", err)
	}
	if _, err := fx.svc.Create(ctx, "alice", CreateInput{DocumentID: "doc-1", GranteeEmail: "alice@example.com"}); !errors.Is(err, ErrSelfShareForbidden) {
		t.Errorf("self share: err = %v, want ErrSelfShareForbidden", err)
	}
}

func TestCreate_DuplicateActiveGrant(t *testing.T) {
	fx := newFixture(t)
	fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})

	_, err := fx.svc.Create(context.Background(), "alice", CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})
	if !errors.Is(err, ErrDuplicateActiveGrant) {
		t.Fatalf("err = %v, want ErrDuplicateActiveGrant", err)
	}
}

func TestCreate_RetiresExpiredActiveGrant(t *testing.T) {
	fx := newFixture(t)
	old := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})

	fx.clock.Advance(grantTTL + time.Minute)
	fresh, err := fx.svc.Create(context.Background(), "alice", CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})
	if err != nil {
		t.Fatalf("Create after expiry: %v", err)
	}
	retired, _ := fx.repo.GetByID(context.Background(), old.ID)
	if retired.Active {
		t.Error("expired grant should have been retired")
	}
	if fresh.ID == old.ID {
		t.Error("expected a new grant, not the old one")
	}
}

func TestCreate_StoreConstraintBackstop(t *testing.T) {
	fx := newFixture(t)
	// Simulate losing the check-then-insert race: the triple is already taken
	// by the time Create inserts.
	fx.repo.Create(context.Background(), &domain.Grant{
		ID: "raced", DocumentID: "doc-1", GrantorID: "alice", GranteeID: "bob",
		Permission: domain.PermissionView, Active: true,
		ExpiresAt: fx.clock.Now().Add(grantTTL),
	})
	_, err := fx.svc.Create(context.Background(), "alice", CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})
	if !errors.Is(err, ErrDuplicateActiveGrant) {
		t.Fatalf("err = %v, want ErrDuplicateActiveGrant", err)
	}
}

func TestRevoke(t *testing.T) {
	fx := newFixture(t)
	g := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})
	ctx := context.Background()

	if err := fx.svc.Revoke(ctx, "bob", g.ID); !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("revoke by non-grantor: err = %v, want ErrGrantNotFound", err)
	}
	if err := fx.svc.Revoke(ctx, "alice", "missing"); !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("revoke unknown grant: err = %v, want ErrGrantNotFound", err)
	}
	if err := fx.svc.Revoke(ctx, "alice", g.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := fx.svc.Revoke(ctx, "alice", g.ID); err != nil {
		t.Errorf("second revoke should be a no-op success, got %v", err)
	}
	got, _ := fx.repo.GetByID(ctx, g.ID)
	if got.Active {
		t.Error("grant should be inactive after revoke")
	}
}

func TestAccess_PermissionLevels(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	viewGrant := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com", Permission: domain.PermissionView})

	if _, _, err := fx.svc.Access(ctx, "bob", viewGrant.ID, domain.PermissionDownload); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("view grant, download required: err = %v, want ErrPermissionDenied", err)
	}
	if _, _, err := fx.svc.Access(ctx, "bob", viewGrant.ID, domain.PermissionView); err != nil {
		t.Errorf("view grant, view required: err = %v, want nil", err)
	}

	fx.svc.Revoke(ctx, "alice", viewGrant.ID)
	dlGrant := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com", Permission: domain.PermissionDownload})
	if _, _, err := fx.svc.Access(ctx, "bob", dlGrant.ID, domain.PermissionView); err != nil {
		t.Errorf("download grant, view required: err = %v, want nil", err)
	}
	if _, _, err := fx.svc.Access(ctx, "bob", dlGrant.ID, domain.PermissionDownload); err != nil {
		t.Errorf("download grant, download required: err = %v, want nil", err)
	}
}

func TestAccess_CountsUses(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})

	doc, updated, err := fx.svc.Access(ctx, "bob", g.ID, domain.PermissionView)
	if err != nil {
		t.Fatalf("Access: %v", err)
	}
	if doc.ID != "doc-1" {
		t.Errorf("doc = %q, want doc-1", doc.ID)
	}
	if updated.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", updated.AccessCount)
	}
	if updated.LastAccessedAt == nil || !updated.LastAccessedAt.Equal(fx.clock.Now().UTC()) {
		t.Errorf("last_accessed_at = %v, want %v", updated.LastAccessedAt, fx.clock.Now().UTC())
	}

	_, updated, _ = fx.svc.Access(ctx, "bob", g.ID, domain.PermissionView)
	if updated.AccessCount != 2 {
		t.Errorf("access_count = %d after second access, want 2", updated.AccessCount)
	}
}

func TestAccess_Denials(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})

	if _, _, err := fx.svc.Access(ctx, "alice", g.ID, domain.PermissionView); !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("access by non-grantee: err = %v, want ErrGrantNotFound", err)
	}
	if _, _, err := fx.svc.Access(ctx, "bob", "missing", domain.PermissionView); !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("unknown grant: err = %v, want ErrGrantNotFound", err)
	}

	// Expiry is enforced even though the active flag is still set.
	fx.clock.Advance(grantTTL + time.Second)
	stored, _ := fx.repo.GetByID(ctx, g.ID)
	if !stored.Active {
		t.Fatal("precondition: grant should still carry the active flag")
	}
	if _, _, err := fx.svc.Access(ctx, "bob", g.ID, domain.PermissionView); !errors.Is(err, ErrGrantInactiveOrExpired) {
		t.Errorf("expired grant: err = %v, want ErrGrantInactiveOrExpired", err)
	}
}

func TestShareRevokeAccessScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	g := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com", Permission: domain.PermissionView})

	if _, _, err := fx.svc.Access(ctx, "bob", g.ID, domain.PermissionDownload); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("download on view grant: err = %v, want ErrPermissionDenied", err)
	}
	if err := fx.svc.Revoke(ctx, "alice", g.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := fx.svc.Access(ctx, "bob", g.ID, domain.PermissionView); !errors.Is(err, ErrGrantInactiveOrExpired) {
		t.Fatalf("view after revoke: err = %v, want ErrGrantInactiveOrExpired", err)
	}
}

func TestAccessDownloadURL(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com", Permission: domain.PermissionDownload})

	url, doc, err := fx.svc.AccessDownloadURL(ctx, "bob", g.ID)
	if err != nil {
		t.Fatalf("AccessDownloadURL: %v", err)
	}
	if url != "https://blobs.example/documents/k1" {
		t.Errorf("url = %q", url)
	}
	if doc.ID != "doc-1" {
		t.Errorf("doc = %q, want doc-1", doc.ID)
	}
}

func TestListings(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	g1 := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})
	fx.svc.Revoke(ctx, "alice", g1.ID)
	g2 := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})

	received, err := fx.svc.ListReceived(ctx, "bob")
	if err != nil {
		t.Fatalf("ListReceived: %v", err)
	}
	if len(received) != 1 || received[0].ID != g2.ID {
		t.Errorf("received = %d grants, want only the live one", len(received))
	}

	sent, err := fx.svc.ListSent(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSent: %v", err)
	}
	if len(sent) != 2 {
		t.Errorf("sent = %d grants, want full history of 2", len(sent))
	}
}

func TestSweepExpired(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.share(t, CreateInput{DocumentID: "doc-1", GranteeEmail: "bob@example.com"})

	if n, _ := fx.svc.SweepExpired(ctx); n != 0 {
		t.Errorf("sweep before expiry flipped %d grants, want 0", n)
	}
	fx.clock.Advance(grantTTL + time.Second)
	n, err := fx.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("sweep flipped %d grants, want 1", n)
	}
	stored, _ := fx.repo.GetByID(ctx, g.ID)
	if stored.Active {
		t.Error("swept grant should be inactive")
	}
}
