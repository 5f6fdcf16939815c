package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tagscout/internal/ratelimit"
	"tagscout/internal/suggest"
)

const searchBody = `{
	"recordings": [
		{
			"id": "rec-1",
			"score": 95,
			"title": "Echoes",
			"artist-credit": [{"artist": {"id": "a1", "name": "Pink Floyd"}}],
			"releases": [
				{
					"id": "rel-1",
					"title": "Meddle",
					"status": "Official",
					"date": "1971-10-30",
					"release-group": {"primary-type": "Album"},
					"media": [{"track": [{"number": "6"}]}]
				},
				{
					"id": "rel-2",
					"title": "Echoes: The Best of Pink Floyd",
					"status": "Official",
					"date": "2001-11-05",
					"release-group": {"primary-type": "Album", "secondary-types": ["Compilation"]}
				}
			]
		},
		{
			"id": "rec-2",
			"score": 60,
			"title": "Echoes (live)",
			"artist-credit": [{"artist": {"id": "a1", "name": "Pink Floyd"}}]
		}
	]
}`

// newTestClient returns a client pointed at the test server with tight
// backoff settings and a sleep seam that records delays instead of waiting.
func newTestClient(serverURL string) (*Client, *[]time.Duration) {
	slept := &[]time.Duration{}
	c := New(nil, Options{
		UserAgent:   "tagscout-test/1.0",
		BackoffBase: 2 * time.Second,
		BackoffMax:  30 * time.Second,
		Attempts:    4,
	})
	c.apiURL = serverURL
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return c, slept
}

func TestSearch_ParsesRecordings(t *testing.T) {
	var gotQuery, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	result, err := client.Search(context.Background(), suggest.Query{Title: "Echoes", Artist: "Pink Floyd"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if gotQuery != `recording:"Echoes" AND artist:"Pink Floyd"` {
		t.Errorf("query = %q", gotQuery)
	}
	if gotUA != "tagscout-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}
	first := result.Records[0]
	if first.Title != "Echoes" || first.Artist != "Pink Floyd" {
		t.Errorf("record = %+v", first)
	}
	if first.Score != 0.95 {
		t.Errorf("score = %v, want 0.95", first.Score)
	}
	// Original studio album beats the compilation for the album/year hints.
	if first.Album != "Meddle" || first.Year != 1971 || first.Track != 6 {
		t.Errorf("release fields = %q/%d/%d, want Meddle/1971/6", first.Album, first.Year, first.Track)
	}
	if result.Records[1].Score != 0.6 {
		t.Errorf("second score = %v, want 0.6", result.Records[1].Score)
	}
}

func TestSearch_EmptyQueryIsNoOp(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	result, err := client.Search(context.Background(), suggest.Query{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("got %d records, want none", len(result.Records))
	}
	if called {
		t.Error("no request should be made for an empty query")
	}
}

func TestSearch_ServerErrorIsSoftFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	_, err := client.Search(context.Background(), suggest.Query{Title: "x"})
	if !errors.Is(err, suggest.ErrLookupUnavailable) {
		t.Errorf("err = %v, want ErrLookupUnavailable", err)
	}
}

func TestSearch_RetriesWithExponentialBackoff(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client, slept := newTestClient(server.URL)
	result, err := client.Search(context.Background(), suggest.Query{Title: "Echoes"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(result.Records) == 0 {
		t.Fatal("expected records after retries")
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %d times, want %d: %v", len(*slept), len(want), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}

	// Success clears the failure level for the next independent query.
	client.mu.Lock()
	failures := client.failures
	client.mu.Unlock()
	if failures != 0 {
		t.Errorf("failures = %d after success, want 0", failures)
	}
}

func TestSearch_ExhaustedAttemptsDegradesAndResets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, slept := newTestClient(server.URL)
	_, err := client.Search(context.Background(), suggest.Query{Title: "x"})
	if !errors.Is(err, suggest.ErrLookupUnavailable) {
		t.Fatalf("err = %v, want ErrLookupUnavailable", err)
	}
	if len(*slept) != 4 {
		t.Errorf("slept %d times, want one per attempt", len(*slept))
	}

	client.mu.Lock()
	failures := client.failures
	client.mu.Unlock()
	if failures != 0 {
		t.Errorf("failures = %d after exhaustion, want 0", failures)
	}
}

func TestSearch_RetryAfterHeaderWins(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client, slept := newTestClient(server.URL)
	if _, err := client.Search(context.Background(), suggest.Query{Title: "x"}); err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 7*time.Second {
		t.Errorf("slept = %v, want [7s]", *slept)
	}
}

func TestSearch_RetryPassesRateGate(t *testing.T) {
	const interval = 200 * time.Millisecond

	var mu sync.Mutex
	var hits []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		first := len(hits) == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)
	client.limiter = ratelimit.New(interval)
	// Backoff far below the gate interval: the retry must still wait for the
	// gate, not just the backoff.
	client.backoffBase = time.Millisecond

	if _, err := client.Search(context.Background(), suggest.Query{Title: "x"}); err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 2 {
		t.Fatalf("got %d requests, want 2", len(hits))
	}
	if gap := hits[1].Sub(hits[0]); gap < interval-20*time.Millisecond {
		t.Errorf("retry issued %v after the rate-limited attempt, want at least %v", gap, interval)
	}
}

func TestSearch_BackoffCappedAtMax(t *testing.T) {
	client, _ := newTestClient("http://unused")
	client.backoffBase = 10 * time.Second
	client.backoffMax = 15 * time.Second
	client.failures = 3

	if got := client.nextBackoff(""); got != 15*time.Second {
		t.Errorf("nextBackoff = %v, want capped 15s", got)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		query suggest.Query
		want  string
	}{
		{"all terms", suggest.Query{Title: "T", Artist: "A", Album: "L"}, `recording:"T" AND artist:"A" AND release:"L"`},
		{"title only", suggest.Query{Title: "T"}, `recording:"T"`},
		{"empty", suggest.Query{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.query); got != tt.want {
				t.Errorf("buildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	if y := parseYear("1971-10-30"); y != 1971 {
		t.Errorf("parseYear full date = %d", y)
	}
	if y := parseYear("1971"); y != 1971 {
		t.Errorf("parseYear year only = %d", y)
	}
	if y := parseYear(""); y != 0 {
		t.Errorf("parseYear empty = %d", y)
	}
}
