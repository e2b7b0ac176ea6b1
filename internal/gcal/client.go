// Package gcal reads an interviewer's Google Calendar so that busy periods can be
// left out when availability is expanded into slots.
package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"interview-scheduler/internal/config"
	"interview-scheduler/internal/timemath"
)

var (
	ErrNotConfigured = errors.New("google calendar not configured")
	ErrInvalidToken  = errors.New("invalid google token")
)

type Option func(*Client)

func WithClock(c timemath.Clock) Option { return func(cl *Client) { cl.clock = c } }

func WithLocation(loc *time.Location) Option { return func(cl *Client) { cl.loc = loc } }

func WithLogger(l *zap.Logger) Option { return func(cl *Client) { cl.log = l } }

// WithEndpoint points the Calendar API at another base URL.
func WithEndpoint(url string) Option { return func(cl *Client) { cl.endpoint = url } }

type Client struct {
	oauth      *oauth2.Config
	calendarID string
	ttl        time.Duration
	endpoint   string
	clock      timemath.Clock
	loc        *time.Location
	log        *zap.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, cacheEntry]
}

type cacheEntry struct {
	busy      []timemath.Interval
	fetchedAt time.Time
}

// New returns nil and ErrNotConfigured when the OAuth client credentials are missing.
func New(cfg config.GoogleConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("busy cache: %w", err)
	}

	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		calendarID: cfg.CalendarID,
		ttl:        cfg.CacheTTL,
		clock:      timemath.SystemClock{},
		loc:        time.UTC,
		log:        zap.NewNop(),
		cache:      cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.calendarID == "" {
		c.calendarID = "primary"
	}
	c.log = c.log.Named("gcal")
	return c, nil
}

// AuthURL starts the offline-access consent flow.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// ParseToken decodes the JSON token callers pass in the X-Google-Token header.
func ParseToken(raw string) (*oauth2.Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.AccessToken == "" {
		return nil, ErrInvalidToken
	}
	return &tok, nil
}

// BusyIntervals returns the opaque, non-cancelled events of the configured calendar
// overlapping [from, to).
func (c *Client) BusyIntervals(ctx context.Context, tok *oauth2.Token, from, to time.Time) ([]timemath.Interval, error) {
	key := cacheKey(tok, c.calendarID, from, to)
	if busy, ok := c.cached(key); ok {
		return busy, nil
	}

	opts := []option.ClientOption{option.WithHTTPClient(c.oauth.Client(ctx, tok))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}

	call := srv.Events.List(c.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339))

	var items []*calendar.Event
	err = call.Pages(ctx, func(page *calendar.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	busy := eventsToIntervals(items, c.loc)
	c.log.Debug("fetched busy intervals",
		zap.String("calendar", c.calendarID),
		zap.Int("events", len(items)),
		zap.Int("busy", len(busy)))

	c.mu.Lock()
	c.cache.Add(key, cacheEntry{busy: busy, fetchedAt: c.clock.Now()})
	c.mu.Unlock()
	return busy, nil
}

func (c *Client) cached(key string) ([]timemath.Interval, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.fetchedAt) >= c.ttl {
		c.cache.Remove(key)
		return nil, false
	}
	return e.busy, true
}

func cacheKey(tok *oauth2.Token, calendarID string, from, to time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%d", tok.AccessToken, calendarID, from.Unix(), to.Unix())
}

func eventsToIntervals(items []*calendar.Event, loc *time.Location) []timemath.Interval {
	out := make([]timemath.Interval, 0, len(items))
	for _, e := range items {
		if e == nil || e.Status == "cancelled" || e.Transparency == "transparent" {
			continue
		}
		start, ok := eventTime(e.Start, loc)
		if !ok {
			continue
		}
		end, ok := eventTime(e.End, loc)
		if !ok || !start.Before(end) {
			continue
		}
		out = append(out, timemath.Interval{Start: start, End: end})
	}
	return out
}

// eventTime handles both timed events and all-day events, which carry only a date.
func eventTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, err == nil
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		return t, err == nil
	}
	return time.Time{}, false
}
