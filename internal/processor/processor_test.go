package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pauljones0/fly4deals/internal/ai"
	"github.com/pauljones0/fly4deals/internal/models"
	"github.com/pauljones0/fly4deals/internal/notifier"
	"github.com/pauljones0/fly4deals/internal/state"
)

// --- Mock implementations ---

type mockStore struct {
	rows    []models.PostRecord
	saves   int
	loadErr error
	saveErr error
}

func (m *mockStore) Load(_ context.Context) ([]models.PostRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]models.PostRecord(nil), m.rows...), nil
}

func (m *mockStore) Save(_ context.Context, records []models.PostRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.rows = append([]models.PostRecord(nil), records...)
	return nil
}

func (m *mockStore) Close() error { return nil }

type mockScraper struct {
	posts []models.PostRecord
	err   error
	calls int
}

func (m *mockScraper) DiscoverNewPosts(_ context.Context, _ time.Time) ([]models.PostRecord, error) {
	m.calls++
	return m.posts, m.err
}

type mockExtractor struct {
	results map[string]ai.Result
	calls   []string
}

func (m *mockExtractor) Extract(_ context.Context, record models.PostRecord) ai.Result {
	m.calls = append(m.calls, record.URL)
	if res, ok := m.results[record.URL]; ok {
		return res
	}
	return ai.Result{Status: ai.StatusOK, Deal: &models.Deal{From: "Warsaw, Poland", To: "New York, USA", Price: "1500 PLN", When: "January 2025"}}
}

type mockNotifier struct {
	sent     []string
	err      error
	onNotify func()
}

func (m *mockNotifier) Notify(_ context.Context, deal models.Deal) error {
	if m.onNotify != nil {
		m.onNotify()
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, notifier.FormatDeal(deal))
	return nil
}

func post(url string) models.PostRecord {
	return models.PostRecord{
		Title:     "Post " + url,
		CreatedAt: time.Date(2025, time.January, 5, 14, 30, 0, 0, time.UTC),
		URL:       url,
		Content:   "Tanie loty",
	}
}

func newTestController(store *mockStore, s *mockScraper, e *mockExtractor, n *mockNotifier) *RunController {
	p := New(store, s, e, n)
	p.now = func() time.Time { return time.Date(2025, time.January, 5, 15, 0, 0, 0, time.UTC) }
	return p
}

// --- Tests ---

func TestRun_NewPostEndToEnd(t *testing.T) {
	store := &mockStore{}
	scr := &mockScraper{posts: []models.PostRecord{post("viewtopic.php?t=1")}}
	ext := &mockExtractor{}
	notif := &mockNotifier{}

	report, err := newTestController(store, scr, ext, notif).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.RunID == "" {
		t.Error("RunID should be set")
	}
	if report.Added != 1 || report.Extracted != 1 || report.Notified != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(store.rows) != 1 {
		t.Fatalf("stored %d rows, want 1", len(store.rows))
	}
	row := store.rows[0]
	if !row.Checked || row.Response == nil || row.Response.To != "New York, USA" {
		t.Errorf("row = %+v", row)
	}
	want := "A flight from Warsaw Poland to New York USA in January 2025 for 1500 PLN"
	if len(notif.sent) != 1 || notif.sent[0] != want {
		t.Errorf("sent = %v, want [%q]", notif.sent, want)
	}
}

func TestRun_NoNewPosts(t *testing.T) {
	store := &mockStore{rows: []models.PostRecord{post("old")}}
	scr := &mockScraper{}
	ext := &mockExtractor{}
	notif := &mockNotifier{}

	report, err := newTestController(store, scr, ext, notif).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.NoNewPosts {
		t.Error("NoNewPosts should be true")
	}
	if store.saves != 0 || len(ext.calls) != 0 || len(notif.sent) != 0 {
		t.Errorf("No work expected: saves=%d extracts=%d sent=%d", store.saves, len(ext.calls), len(notif.sent))
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := &mockStore{}
	scr := &mockScraper{posts: []models.PostRecord{post("a"), post("b")}}
	ext := &mockExtractor{}
	notif := &mockNotifier{}
	p := newTestController(store, scr, ext, notif)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	first := append([]models.PostRecord(nil), store.rows...)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Added != 0 || report.Extracted != 0 || report.Notified != 0 {
		t.Errorf("second report = %+v, want no work", report)
	}
	if len(store.rows) != 2 || len(notif.sent) != 2 || len(ext.calls) != 2 {
		t.Errorf("rows=%d sent=%d extracts=%d, want 2 each", len(store.rows), len(notif.sent), len(ext.calls))
	}
	if err := state.CheckMonotonic(first, store.rows); err != nil {
		t.Errorf("CheckMonotonic() = %v", err)
	}
}

func TestRun_ExtractionFailureRetriedNextRun(t *testing.T) {
	store := &mockStore{}
	scr := &mockScraper{posts: []models.PostRecord{post("a")}}
	ext := &mockExtractor{results: map[string]ai.Result{
		"a": {Status: ai.StatusParseFailure, Err: errors.New("not json")},
	}}
	notif := &mockNotifier{}
	p := newTestController(store, scr, ext, notif)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.ExtractFailures != 1 || len(notif.sent) != 0 {
		t.Errorf("report = %+v, sent = %v", report, notif.sent)
	}
	if row := store.rows[0]; row.Checked || row.Response != nil {
		t.Errorf("failed row should stay pending: %+v", row)
	}

	ext.results = nil
	report, err = p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Extracted != 1 || report.Notified != 1 {
		t.Errorf("retry report = %+v", report)
	}
	if row := store.rows[0]; !row.Checked || row.Response == nil {
		t.Errorf("row should be done after retry: %+v", row)
	}
}

func TestRun_NotifyFailureStillChecks(t *testing.T) {
	store := &mockStore{}
	scr := &mockScraper{posts: []models.PostRecord{post("a")}}
	ext := &mockExtractor{}
	notif := &mockNotifier{err: errors.New("smtp down")}
	p := newTestController(store, scr, ext, notif)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.NotifyFailures != 1 || report.Notified != 0 {
		t.Errorf("report = %+v", report)
	}
	if !store.rows[0].Checked {
		t.Error("row should be checked after a failed attempt")
	}

	notif.err = nil
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notif.sent) != 0 {
		t.Errorf("checked row must not be resent, sent = %v", notif.sent)
	}
}

func TestRun_ResumesExtractedRows(t *testing.T) {
	deal := &models.Deal{From: "Gdansk, Poland", To: "Oslo, Norway", Price: "99 PLN"}
	done := post("done")
	done.Response = deal
	done.Checked = true
	pending := post("pending")
	pending.Response = deal

	store := &mockStore{rows: []models.PostRecord{done, pending}}
	scr := &mockScraper{posts: []models.PostRecord{post("new")}}
	ext := &mockExtractor{}
	notif := &mockNotifier{}

	report, err := newTestController(store, scr, ext, notif).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(ext.calls) != 1 || ext.calls[0] != "new" {
		t.Errorf("extract calls = %v, want [new]", ext.calls)
	}
	if report.Notified != 2 {
		t.Errorf("Notified = %d, want 2", report.Notified)
	}
	for _, r := range store.rows {
		if !r.Checked {
			t.Errorf("row %s should be checked", r.URL)
		}
	}
	if store.rows[1].Response.To != "Oslo, Norway" {
		t.Error("existing response must not be replaced")
	}
}

func TestRun_SkipsInvalidPosts(t *testing.T) {
	bad := post("bad")
	bad.Title = ""
	store := &mockStore{}
	scr := &mockScraper{posts: []models.PostRecord{bad, post("good")}}

	report, err := newTestController(store, scr, &mockExtractor{}, &mockNotifier{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Discovered != 1 || len(store.rows) != 1 || store.rows[0].URL != "good" {
		t.Errorf("report = %+v, rows = %+v", report, store.rows)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name      string
		store     *mockStore
		scraper   *mockScraper
		wantSaves int
	}{
		{"Load fails", &mockStore{loadErr: errors.New("disk")}, &mockScraper{posts: []models.PostRecord{post("a")}}, 0},
		{"Discovery fails", &mockStore{}, &mockScraper{err: errors.New("listing unreachable")}, 0},
		{"Save fails", &mockStore{saveErr: errors.New("read-only")}, &mockScraper{posts: []models.PostRecord{post("a")}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestController(tt.store, tt.scraper, &mockExtractor{}, &mockNotifier{}).Run(context.Background())
			if err == nil {
				t.Fatal("Run() expected error, got nil")
			}
			if tt.store.saves != tt.wantSaves {
				t.Errorf("saves = %d, want %d", tt.store.saves, tt.wantSaves)
			}
		})
	}
}

func TestRun_InterruptedLeavesRowsUnchecked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &mockStore{}
	scr := &mockScraper{posts: []models.PostRecord{post("a"), post("b")}}
	notif := &mockNotifier{onNotify: cancel}

	_, err := newTestController(store, scr, &mockExtractor{}, notif).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
	if !store.rows[0].Checked || store.rows[1].Checked {
		t.Errorf("only the attempted row should be checked: %+v", store.rows)
	}
	if store.rows[1].Response == nil {
		t.Error("extraction result should be kept for the unsent row")
	}
}
