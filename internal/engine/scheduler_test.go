package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bookscout/internal/author"
	"bookscout/internal/outcome"
	"bookscout/internal/record"
)

func newTestCaller(t *testing.T, mux *http.ServeMux) author.Caller {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := author.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func bookRecord(id any, summary string) *record.Record {
	return record.New(map[string]any{
		record.FieldID:      id,
		record.FieldSummary: summary,
	})
}

// countingCaller tracks the number of lookups in flight and the maximum
// observed at any instant.
type countingCaller struct {
	mu      sync.Mutex
	current int
	max     int
	calls   int32
	delay   time.Duration
	fail    func(bookID string) error
}

func (c *countingCaller) Call(ctx context.Context, bookID string) (*author.Details, error) {
	c.mu.Lock()
	c.current++
	if c.current > c.max {
		c.max = c.current
	}
	c.mu.Unlock()
	atomic.AddInt32(&c.calls, 1)

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			c.mu.Lock()
			c.current--
			c.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	c.current--
	c.mu.Unlock()

	if c.fail != nil {
		if err := c.fail(bookID); err != nil {
			return nil, err
		}
	}
	return &author.Details{Author: "Author of " + bookID}, nil
}

func TestScheduler_Run_MixedOutcomesTallyEveryRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			BookID string `json:"book_id"`
		}
		decodeJSONBody(t, r, &payload)
		switch payload.BookID {
		case "missing":
			w.WriteHeader(http.StatusNotFound)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprintf(w, `{"author":"Author of %s"}`, payload.BookID)
		}
	})

	scheduler, err := NewScheduler(newTestCaller(t, mux), 3)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	records := []*record.Record{
		bookRecord("1", "a mystery novel"),
		bookRecord("missing", "another mystery"),
		bookRecord("2", "yet another mystery"),
		bookRecord("broken", "a cursed mystery"),
	}

	tally, err := scheduler.Run(context.Background(), records, "mystery")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := tally.Total(); got != len(records) {
		t.Fatalf("expected tally total %d, got %d", len(records), got)
	}
	if got := tally.Get(outcome.StatusOK); got != 2 {
		t.Errorf("expected 2 ok, got %d", got)
	}
	if got := tally.Get(outcome.StatusNotFound); got != 1 {
		t.Errorf("expected 1 not_found, got %d", got)
	}
	if got := tally.Get(outcome.StatusError); got != 1 {
		t.Errorf("expected 1 error, got %d", got)
	}
}

func TestScheduler_Run_OnlySuccessfulRecordsAreEnriched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			BookID string `json:"book_id"`
		}
		decodeJSONBody(t, r, &payload)
		if payload.BookID == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"author":"Author of %s"}`, payload.BookID)
	})

	scheduler, err := NewScheduler(newTestCaller(t, mux), 2)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ok1 := bookRecord("1", "first")
	notFound := bookRecord("missing", "second")
	ok2 := bookRecord("2", "third")

	tally, err := scheduler.Run(context.Background(), []*record.Record{ok1, notFound, ok2}, "mystery")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tally.Get(outcome.StatusOK); got != 2 {
		t.Fatalf("expected 2 ok, got %d", got)
	}

	for _, rec := range []*record.Record{ok1, ok2} {
		if !rec.Enriched() {
			t.Fatalf("expected record %v to be enriched", rec.Source[record.FieldID])
		}
		if got := rec.Source[record.FieldQuery]; got != "mystery" {
			t.Errorf("expected query stamp %q, got %v", "mystery", got)
		}
	}
	if notFound.Enriched() {
		t.Error("not_found record must not carry an author field")
	}
	if _, ok := notFound.Source[record.FieldQuery]; ok {
		t.Error("not_found record must not carry a query stamp")
	}

	if got := ok1.Source[record.FieldAuthor]; got != "Author of 1" {
		t.Errorf("unexpected author for record 1: %v", got)
	}
}

func TestScheduler_Run_ConcurrencyNeverExceedsLimit(t *testing.T) {
	caller := &countingCaller{delay: 10 * time.Millisecond}

	const limit = 3
	scheduler, err := NewScheduler(caller, limit)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	var records []*record.Record
	for i := 0; i < 20; i++ {
		records = append(records, bookRecord(fmt.Sprintf("%d", i), "summary"))
	}

	tally, err := scheduler.Run(context.Background(), records, "mystery")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tally.Get(outcome.StatusOK); got != len(records) {
		t.Fatalf("expected %d ok, got %d", len(records), got)
	}
	if caller.max > limit {
		t.Fatalf("observed %d concurrent lookups, limit is %d", caller.max, limit)
	}
}

func TestScheduler_Run_TallyIsIndependentOfRecordOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			BookID string `json:"book_id"`
		}
		decodeJSONBody(t, r, &payload)
		switch {
		case strings.HasPrefix(payload.BookID, "missing"):
			w.WriteHeader(http.StatusNotFound)
		case strings.HasPrefix(payload.BookID, "broken"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprintf(w, `{"author":"Author of %s"}`, payload.BookID)
		}
	})
	caller := newTestCaller(t, mux)

	ids := []string{"1", "missing-1", "2", "broken-1", "3", "missing-2", "broken-2", "4"}

	runWithOrder := func(order []string) outcome.Tally {
		scheduler, err := NewScheduler(caller, 3)
		if err != nil {
			t.Fatalf("NewScheduler: %v", err)
		}
		records := make([]*record.Record, 0, len(order))
		for _, id := range order {
			records = append(records, bookRecord(id, "summary"))
		}
		tally, err := scheduler.Run(context.Background(), records, "mystery")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return tally
	}

	want := runWithOrder(ids)
	if got := want.Total(); got != len(ids) {
		t.Fatalf("expected tally total %d, got %d", len(ids), got)
	}

	for seed := int64(1); seed <= 3; seed++ {
		shuffled := append([]string(nil), ids...)
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := runWithOrder(shuffled)
		for _, status := range []outcome.Status{outcome.StatusOK, outcome.StatusNotFound, outcome.StatusError} {
			if got.Get(status) != want.Get(status) {
				t.Fatalf("seed %d: tally for %s = %d, want %d (order %v)",
					seed, status, got.Get(status), want.Get(status), shuffled)
			}
		}
	}
}

func TestScheduler_Run_FailuresDoNotAbortTheBatch(t *testing.T) {
	// Every call fails at the transport level; all records must still be
	// processed and tallied as errors.
	client, err := author.NewClient("http://127.0.0.1:1") // nothing listens here
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	scheduler, err := NewScheduler(client, 4)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	records := []*record.Record{
		bookRecord("1", "a"),
		bookRecord("2", "b"),
		bookRecord("3", "c"),
	}

	tally, err := scheduler.Run(context.Background(), records, "mystery")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tally.Get(outcome.StatusError); got != len(records) {
		t.Fatalf("expected %d errors, got %d", len(records), got)
	}
	for _, rec := range records {
		if rec.Enriched() {
			t.Error("failed record must not be enriched")
		}
	}
}

func TestScheduler_Run_RecordWithoutIDIsAnError(t *testing.T) {
	caller := &countingCaller{}
	scheduler, err := NewScheduler(caller, 2)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	records := []*record.Record{
		bookRecord("1", "has an id"),
		record.New(map[string]any{record.FieldSummary: "no id at all"}),
	}

	tally, err := scheduler.Run(context.Background(), records, "mystery")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tally.Get(outcome.StatusOK); got != 1 {
		t.Errorf("expected 1 ok, got %d", got)
	}
	if got := tally.Get(outcome.StatusError); got != 1 {
		t.Errorf("expected 1 error, got %d", got)
	}
	// The id-less record must not reach the remote service.
	if got := atomic.LoadInt32(&caller.calls); got != 1 {
		t.Fatalf("expected exactly 1 remote call, got %d", got)
	}
}

func TestScheduler_Run_ObserverSeesEveryOutcome(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"author":"Somebody"}`)
	})

	var mu sync.Mutex
	var seen []outcome.Result
	scheduler, err := NewScheduler(newTestCaller(t, mux), 2,
		WithObserver(func(res outcome.Result) {
			mu.Lock()
			seen = append(seen, res)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	records := []*record.Record{
		bookRecord("1", "a"),
		bookRecord("2", "b"),
		bookRecord("3", "c"),
	}
	if _, err := scheduler.Run(context.Background(), records, "mystery"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(seen) != len(records) {
		t.Fatalf("expected observer to see %d results, saw %d", len(records), len(seen))
	}
	for _, res := range seen {
		if res.Term != "mystery" {
			t.Errorf("expected term %q on result, got %q", "mystery", res.Term)
		}
		if res.Status != outcome.StatusOK {
			t.Errorf("expected ok result, got %s", res.Status)
		}
	}
}

func TestScheduler_Run_CancellationReturnsPartialTallyAndError(t *testing.T) {
	started := make(chan struct{}, 1)
	caller := &countingCaller{
		delay: time.Hour, // blocks until canceled
	}

	scheduler, err := NewScheduler(notifyCaller{caller, started}, 1)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	records := []*record.Record{
		bookRecord("1", "a"),
		bookRecord("2", "b"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var tally outcome.Tally
	var runErr error
	go func() {
		tally, runErr = scheduler.Run(ctx, records, "mystery")
		close(done)
	}()

	<-started
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return promptly after cancellation")
	}

	if runErr == nil {
		t.Fatal("expected cancellation error")
	}
	// Canceled tasks never produce a synthetic outcome.
	if got := tally.Total(); got > len(records) {
		t.Fatalf("tally total %d exceeds record count %d", got, len(records))
	}
}

// notifyCaller signals on the first Call so tests can cancel mid-flight.
type notifyCaller struct {
	base    author.Caller
	started chan struct{}
}

func (c notifyCaller) Call(ctx context.Context, bookID string) (*author.Details, error) {
	select {
	case c.started <- struct{}{}:
	default:
	}
	return c.base.Call(ctx, bookID)
}

func TestScheduler_Run_EmptyRecordListIsACleanRun(t *testing.T) {
	scheduler, err := NewScheduler(&countingCaller{}, 2)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	tally, err := scheduler.Run(context.Background(), nil, "mystery")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tally.Total(); got != 0 {
		t.Fatalf("expected empty tally, got total %d", got)
	}
}

func TestNewScheduler_RejectsBadArguments(t *testing.T) {
	if _, err := NewScheduler(nil, 2); err == nil {
		t.Error("expected error for nil caller")
	}
	if _, err := NewScheduler(&countingCaller{}, 0); err == nil {
		t.Error("expected error for zero concurrency")
	}
	if _, err := NewScheduler(&countingCaller{}, -3); err == nil {
		t.Error("expected error for negative concurrency")
	}
	if _, err := NewScheduler(&countingCaller{}, 1001); err == nil {
		t.Error("expected error for concurrency above the limit")
	}
}

func decodeJSONBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
}
