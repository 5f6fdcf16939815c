package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tagscout/internal/ratelimit"
	"tagscout/internal/suggest"
)

// Options configures the client. Zero values fall back to sane defaults.
type Options struct {
	UserAgent   string        // identifying client string, required by MusicBrainz
	BackoffBase time.Duration // first retry delay after a rate-limit response
	BackoffMax  time.Duration // cap on the exponential schedule
	Attempts    int           // total request attempts per query
	Timeout     time.Duration // per-request HTTP timeout
}

const (
	defaultUserAgent   = "tagscout/1.0"
	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 30 * time.Second
	defaultAttempts    = 4
	defaultTimeout     = 10 * time.Second
)

// Client is a MusicBrainz Web API client that implements suggest.Lookup.
// All requests pass through the shared rate limiter; rate-limit responses are
// retried on an exponential backoff schedule and absorbed as soft failures
// once the attempt budget runs out.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	userAgent   string
	limiter     *ratelimit.Limiter
	backoffBase time.Duration
	backoffMax  time.Duration
	attempts    int

	mu       sync.Mutex
	failures int // consecutive rate-limit responses, drives the backoff level

	sleep func(ctx context.Context, d time.Duration) error // test seam
}

// New creates a MusicBrainz client gated by the given limiter.
func New(limiter *ratelimit.Limiter, opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		apiURL:      "https://musicbrainz.org/ws/2",
		userAgent:   opts.UserAgent,
		limiter:     limiter,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		attempts:    opts.Attempts,
		sleep:       sleepContext,
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// Search queries the MusicBrainz recording search API. Timeouts, rate-limit
// exhaustion, and unparseable responses all come back as
// suggest.ErrLookupUnavailable; context cancellation is returned as-is.
func (c *Client) Search(ctx context.Context, query suggest.Query) (suggest.Result, error) {
	q := buildQuery(query)
	if q == "" {
		return suggest.Result{}, nil
	}

	reqURL := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=5", c.apiURL, url.QueryEscape(q))

	for attempt := 0; attempt < c.attempts; attempt++ {
		// Every attempt passes the global gate, retries included: the backoff
		// delay and the minimum interval are independent knobs, and the gate
		// must hold across concurrent callers either way.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return suggest.Result{}, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return suggest.Result{}, fmt.Errorf("%w: build request: %v", suggest.ErrLookupUnavailable, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return suggest.Result{}, ctx.Err()
			}
			return suggest.Result{}, fmt.Errorf("%w: %v", suggest.ErrLookupUnavailable, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			resp.Body.Close()
			wait := c.nextBackoff(resp.Header.Get("Retry-After"))
			if err := c.sleep(ctx, wait); err != nil {
				return suggest.Result{}, err
			}
			continue
		}

		result, err := c.decode(resp)
		if err != nil {
			return suggest.Result{}, err
		}
		c.resetFailures()
		return result, nil
	}

	// Attempt budget exhausted. Reset the counter so the next independent
	// query starts from the base delay again.
	c.resetFailures()
	return suggest.Result{}, fmt.Errorf("%w: rate limited after %d attempts", suggest.ErrLookupUnavailable, c.attempts)
}

// nextBackoff returns the delay before the next attempt and bumps the failure
// level. A Retry-After header wins over the computed schedule.
func (c *Client) nextBackoff(retryAfter string) time.Duration {
	c.mu.Lock()
	wait := c.backoffBase << c.failures
	if wait > c.backoffMax || wait <= 0 {
		wait = c.backoffMax
	}
	c.failures++
	c.mu.Unlock()

	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return wait
}

func (c *Client) resetFailures() {
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()
}

func (c *Client) decode(resp *http.Response) (suggest.Result, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return suggest.Result{}, fmt.Errorf("%w: status %d", suggest.ErrLookupUnavailable, resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return suggest.Result{}, fmt.Errorf("%w: decode response: %v", suggest.ErrLookupUnavailable, err)
	}
	return suggest.Result{Records: parseRecordings(searchResp.Recordings)}, nil
}

func buildQuery(query suggest.Query) string {
	var parts []string
	if query.Title != "" {
		parts = append(parts, fmt.Sprintf("recording:%q", query.Title))
	}
	if query.Artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", query.Artist))
	}
	if query.Album != "" {
		parts = append(parts, fmt.Sprintf("release:%q", query.Album))
	}
	return strings.Join(parts, " AND ")
}

// parseRecordings converts API recordings into neutral lookup records. The
// record score is MusicBrainz's own 0-100 match score scaled to [0,1].
func parseRecordings(recordings []recording) []suggest.Record {
	var records []suggest.Record
	for _, rec := range recordings {
		r := suggest.Record{
			Title:  rec.Title,
			Artist: joinArtistCredits(rec.ArtistCredit),
			Score:  float64(rec.Score) / 100,
		}

		if len(rec.Releases) > 0 {
			rel := pickBestRelease(rec.Releases)
			r.Album = rel.Title
			r.Year = parseYear(rel.Date)
			if len(rel.Media) > 0 && len(rel.Media[0].Track) > 0 {
				if n, err := strconv.Atoi(rel.Media[0].Track[0].Number); err == nil {
					r.Track = n
				}
			}
		}

		records = append(records, r)
	}
	return records
}

func joinArtistCredits(credits []artistCredit) string {
	var parts []string
	for _, ac := range credits {
		parts = append(parts, ac.Artist.Name)
	}
	return strings.Join(parts, ", ")
}

// pickBestRelease selects the most representative release for album/year
// hints. Prefers: Official status, Album type, no secondary types, earliest
// date.
func pickBestRelease(releases []release) release {
	best := releases[0]
	bestScore := releaseScore(best)

	for _, rel := range releases[1:] {
		s := releaseScore(rel)
		if s > bestScore || (s == bestScore && rel.Date != "" && (best.Date == "" || rel.Date < best.Date)) {
			best = rel
			bestScore = s
		}
	}
	return best
}

func releaseScore(rel release) int {
	score := 0
	if rel.Status == "Official" {
		score += 4
	}
	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}
	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score += 1
	}
	return score
}

func parseYear(date string) int {
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MusicBrainz API response types

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Score        int            `json:"score"`
	Title        string         `json:"title"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Artist artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Date         string       `json:"date"`
	ReleaseGroup releaseGroup `json:"release-group"`
	Media        []media      `json:"media"`
}

type releaseGroup struct {
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}

type media struct {
	Track []track `json:"track"`
}

type track struct {
	Number string `json:"number"`
}
