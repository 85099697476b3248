package permit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*Permit

	insertErr error
	listErr   error
	updateErr error

	deletes []string
	updates []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*Permit)}
}

func (f *fakeStore) Insert(_ context.Context, p *Permit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, dup := f.records[p.Folio]; dup {
		return errors.New("duplicate folio")
	}
	cp := *p
	f.records[p.Folio] = &cp
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, folio string, st Status, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, folio)
	if f.updateErr != nil {
		return f.updateErr
	}
	if rec, ok := f.records[folio]; ok {
		rec.Estado = st
		t := at
		rec.FechaComprobante = &t
	}
	return nil
}

func (f *fakeStore) Delete(_ context.Context, folio string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, folio)
	delete(f.records, folio)
	return nil
}

func (f *fakeStore) FoliosByPrefix(_ context.Context, _, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for folio := range f.records {
		if strings.HasPrefix(folio, prefix) {
			out = append(out, folio)
		}
	}
	return out, nil
}

func (f *fakeStore) ByFolio(_ context.Context, folio string) (*Permit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[folio]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) get(folio string) *Permit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[folio]
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []int64
	texts []string
}

func (n *fakeNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, userID)
	n.texts = append(n.texts, text)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func testConfig(ttl time.Duration) Config {
	return Config{
		Prefix:       "129",
		Entidad:      "ags",
		SuffixStart:  2,
		PendingTTL:   ttl,
		ValidityDays: 30,
		AdminMarker:  "SERO",
		Location:     time.UTC,
	}
}

func TestIssueSequentialFolios(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	first, err := svc.Issue(context.Background(), Submission{Nombre: "JUAN PEREZ"}, 42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first.Folio != "1292" {
		t.Fatalf("first folio = %s, want 1292", first.Folio)
	}

	second, err := svc.Issue(context.Background(), Submission{Nombre: "ANA LOPEZ"}, 42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if second.Folio != "1293" {
		t.Fatalf("second folio = %s, want 1293", second.Folio)
	}

	if got := second.ExpiresAt.Sub(second.IssuedAt); got != 30*24*time.Hour {
		t.Fatalf("validity window = %v, want 720h", got)
	}
	if svc.PendingCount() != 2 {
		t.Fatalf("PendingCount = %d, want 2", svc.PendingCount())
	}
}

func TestIssuePersistFailureSchedulesNoTimer(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("connection refused")
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	if _, err := svc.Issue(context.Background(), Submission{}, 42); err == nil {
		t.Fatal("Issue succeeded despite insert failure")
	}
	if svc.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d after failed insert, want 0", svc.PendingCount())
	}
}

func TestSubmitProofCancelsTimerAndUpdatesRecord(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	issued, err := svc.Issue(context.Background(), Submission{}, 42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	folio, err := svc.SubmitProof(context.Background(), 42)
	if err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	if folio != issued.Folio {
		t.Fatalf("SubmitProof targeted %s, want %s", folio, issued.Folio)
	}
	if svc.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d, want 0", svc.PendingCount())
	}
	rec := store.get(folio)
	if rec == nil || rec.Estado != StatusProofSubmitted {
		t.Fatalf("record status = %v, want %s", rec, StatusProofSubmitted)
	}
	if rec.FechaComprobante == nil {
		t.Fatal("proof timestamp not set")
	}
}

func TestSubmitProofNoPendingFolio(t *testing.T) {
	svc := NewService(testConfig(time.Hour), newFakeStore(), nil)
	defer svc.Stop()

	if _, err := svc.SubmitProof(context.Background(), 42); !errors.Is(err, ErrNoPendingFolio) {
		t.Fatalf("err = %v, want ErrNoPendingFolio", err)
	}
}

func TestSubmitProofTargetsMostRecentFolio(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	if _, err := svc.Issue(context.Background(), Submission{}, 42); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Issue(context.Background(), Submission{}, 42); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	folio, err := svc.SubmitProof(context.Background(), 42)
	if err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	if folio != "1293" {
		t.Fatalf("SubmitProof targeted %s, want 1293 (most recent)", folio)
	}

	if got := store.get("1292").Estado; got != StatusPending {
		t.Fatalf("older folio status = %s, want still %s", got, StatusPending)
	}
	if got := svc.ActiveFolios(42); len(got) != 1 || got[0] != "1292" {
		t.Fatalf("ActiveFolios = %v, want [1292]", got)
	}
}

func TestSubmitProofSwallowsUpdateFailure(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	if _, err := svc.Issue(context.Background(), Submission{}, 42); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	store.updateErr = errors.New("write timeout")

	if _, err := svc.SubmitProof(context.Background(), 42); err != nil {
		t.Fatalf("SubmitProof surfaced update error: %v", err)
	}
	if svc.PendingCount() != 0 {
		t.Fatal("timer survived a swallowed update failure")
	}
}

func TestAdminValidate(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	if _, err := svc.Issue(context.Background(), Submission{}, 42); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	folio, err := svc.AdminValidate(context.Background(), "sero1292")
	if err != nil {
		t.Fatalf("AdminValidate: %v", err)
	}
	if folio != "1292" {
		t.Fatalf("AdminValidate folio = %s, want 1292", folio)
	}
	if got := store.get("1292").Estado; got != StatusAdminValidated {
		t.Fatalf("record status = %s, want %s", got, StatusAdminValidated)
	}
	if svc.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d, want 0", svc.PendingCount())
	}
}

func TestAdminValidateRejectsMalformedCodes(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	if _, err := svc.Issue(context.Background(), Submission{}, 42); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for _, raw := range []string{"XERO1292", "SERO", "SERO9999", ""} {
		if _, err := svc.AdminValidate(context.Background(), raw); !errors.Is(err, ErrBadAdminCode) {
			t.Fatalf("AdminValidate(%q) err = %v, want ErrBadAdminCode", raw, err)
		}
	}

	// Rejected codes must not have touched the store or the timer.
	if len(store.updates) != 0 {
		t.Fatalf("store updates = %v, want none", store.updates)
	}
	if svc.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", svc.PendingCount())
	}
}

func TestAdminValidateWithoutTimerStillUpdates(t *testing.T) {
	store := newFakeStore()
	store.records["1292"] = &Permit{Folio: "1292", Estado: StatusPending}
	svc := NewService(testConfig(time.Hour), store, nil)
	defer svc.Stop()

	if _, err := svc.AdminValidate(context.Background(), "SERO1292"); err != nil {
		t.Fatalf("AdminValidate: %v", err)
	}
	if got := store.get("1292").Estado; got != StatusAdminValidated {
		t.Fatalf("record status = %s, want %s", got, StatusAdminValidated)
	}
}

func TestExpiryDeletesRecordAndNotifies(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	svc := NewService(testConfig(30*time.Millisecond), store, notifier)
	defer svc.Stop()

	issued, err := svc.Issue(context.Background(), Submission{}, 42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.get(issued.Folio) != nil {
		if time.Now().After(deadline) {
			t.Fatal("record never deleted after deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
	for notifier.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("owner never notified after expiry")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if svc.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d, want 0", svc.PendingCount())
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.sent[0] != 42 {
		t.Fatalf("notified user %d, want 42", notifier.sent[0])
	}
	if !strings.Contains(notifier.texts[0], issued.Folio) {
		t.Fatalf("notification %q does not mention the folio", notifier.texts[0])
	}
}

func TestProofBeforeDeadlinePreventsDeletion(t *testing.T) {
	store := newFakeStore()
	svc := NewService(testConfig(60*time.Millisecond), store, nil)
	defer svc.Stop()

	issued, err := svc.Issue(context.Background(), Submission{}, 42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.SubmitProof(context.Background(), 42); err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	store.mu.Lock()
	deletes := len(store.deletes)
	store.mu.Unlock()
	if deletes != 0 {
		t.Fatalf("record deleted %d times despite proof, want 0", deletes)
	}
	if store.get(issued.Folio) == nil {
		t.Fatal("record vanished despite proof before deadline")
	}
}
