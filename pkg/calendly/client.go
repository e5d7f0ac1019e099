// Package calendly provides the Calendly API v2 client with retry
// logic, read-through caching, and write-path cache invalidation.
package calendly

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/acme-dental/booking-agent/pkg/cache"
	"github.com/acme-dental/booking-agent/pkg/logging"
)

// Cache key namespaces. Writes invalidate exactly the namespaces their
// effect could have staled; see the invalidation contract on Client.
const (
	keyEventTypes    = "event_types"
	keyEventTypeLoc  = "event_type_loc:"
	keyEventsByEmail = "events_by_email:"
	keyInvitees      = "invitees:"
)

// DefaultReason is used when a cancellation carries no explicit reason.
const DefaultReason = "Cancelled by patient via chat agent"

// enrichConcurrency bounds the parallel invitee sub-fetches during an
// identity lookup.
const enrichConcurrency = 4

// Config holds the client configuration.
type Config struct {
	// Token is the Calendly personal access token (required).
	Token string

	// BaseURL is the API endpoint (required).
	BaseURL string

	// Retry behavior. Backoff doubles per attempt with no jitter:
	// the schedule is InitialBackoff * 2^(attempt-1).
	MaxRetries     int
	InitialBackoff time.Duration

	// Timeout applies per attempt, not per logical request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token string) Config {
	return Config{
		Token:          token,
		BaseURL:        "https://api.calendly.com",
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		Timeout:        15 * time.Second,
	}
}

// Client is a Calendly API v2 client with automatic retries and an
// in-memory LRU cache.
//
// Cache invalidation contract: every write method (CreateInvitee,
// CancelEvent) invalidates the cached entries that the operation
// affects, so subsequent reads always see fresh data. The cache is
// purely ephemeral and lost on process restart.
//
// The cache may be shared across client instances; all access goes
// through its internal lock. The http.Client is owned by one Client.
type Client struct {
	httpClient *http.Client
	config     Config
	cache      *cache.LRUCache
	logger     zerolog.Logger
	group      singleflight.Group

	// sleep is time.Sleep in production, injectable for tests.
	sleep func(time.Duration)

	// Current user URI, fetched once and kept for the client lifetime.
	// Not subject to LRU eviction. Double-checked under userMu.
	userMu  sync.RWMutex
	userURI string
}

// New creates a Calendly client. A nil lru gets a dedicated cache with
// the default ceiling.
func New(cfg Config, lru *cache.LRUCache) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("calendly token is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("calendly base URL is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if lru == nil {
		lru = cache.New(cache.DefaultMaxBytes)
	}

	return &Client{
		httpClient: &http.Client{},
		config:     cfg,
		cache:      lru,
		logger:     logging.NewLogger("calendly-client"),
		sleep:      time.Sleep,
	}, nil
}

// Cache returns the underlying cache (shared, safe for concurrent use).
func (c *Client) Cache() *cache.LRUCache {
	return c.cache
}

// CurrentUserURI returns the URI of the authenticated Calendly user.
// The value is fetched once and memoized for the client lifetime.
func (c *Client) CurrentUserURI(ctx context.Context) (string, error) {
	c.userMu.RLock()
	uri := c.userURI
	c.userMu.RUnlock()
	if uri != "" {
		return uri, nil
	}

	c.userMu.Lock()
	defer c.userMu.Unlock()
	if c.userURI != "" {
		return c.userURI, nil
	}

	data, err := c.request(ctx, "get_current_user", http.MethodGet, "/users/me", nil, nil)
	if err != nil {
		return "", err
	}
	var user struct {
		URI string `json:"uri"`
	}
	if err := decodeResource(data, &user); err != nil {
		return "", err
	}
	c.userURI = user.URI
	return c.userURI, nil
}

// EventTypes lists all active event types for the current user.
// Cached under a single catalog slot; never invalidated by writes
// (the catalog rarely changes, staleness is acceptable).
func (c *Client) EventTypes(ctx context.Context) ([]EventType, error) {
	if v, ok := c.cache.Get(keyEventTypes); ok {
		return v.([]EventType), nil
	}

	v, err, _ := c.group.Do(keyEventTypes, func() (any, error) {
		if v, ok := c.cache.Get(keyEventTypes); ok {
			return v.([]EventType), nil
		}
		userURI, err := c.CurrentUserURI(ctx)
		if err != nil {
			return nil, err
		}
		params := map[string]string{"user": userURI, "active": "true"}
		data, err := c.request(ctx, "list_event_types", http.MethodGet, "/event_types", params, nil)
		if err != nil {
			return nil, err
		}
		var types []EventType
		if err := decodeCollection(data, &types); err != nil {
			return nil, err
		}
		c.cache.Put(keyEventTypes, types)
		return types, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]EventType), nil
}

// AvailableTimes returns available slots for an event type within a
// date range. Never cached: availability is real-time data.
func (c *Client) AvailableTimes(ctx context.Context, eventTypeURI, startTime, endTime string) ([]TimeSlot, error) {
	params := map[string]string{
		"event_type": eventTypeURI,
		"start_time": startTime,
		"end_time":   endTime,
	}
	data, err := c.request(ctx, "get_available_times", http.MethodGet, "/event_type_available_times", params, nil)
	if err != nil {
		return nil, err
	}
	var slots []TimeSlot
	if err := decodeCollection(data, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// ListScheduledEvents lists scheduled events for the current user.
// Uncached passthrough; use FindEventsByInviteeEmail for the cached
// identity-indexed lookup.
func (c *Client) ListScheduledEvents(ctx context.Context, opts ListEventsOptions) ([]Event, error) {
	userURI, err := c.CurrentUserURI(ctx)
	if err != nil {
		return nil, err
	}

	status := opts.Status
	if status == "" {
		status = "active"
	}
	params := map[string]string{"user": userURI, "status": status}
	if opts.MinStartTime != "" {
		params["min_start_time"] = opts.MinStartTime
	}
	if opts.MaxStartTime != "" {
		params["max_start_time"] = opts.MaxStartTime
	}

	data, err := c.request(ctx, "list_scheduled_events", http.MethodGet, "/scheduled_events", params, nil)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := decodeCollection(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// EventInvitees lists invitees for one scheduled event (cached under
// an event-scoped key).
func (c *Client) EventInvitees(ctx context.Context, eventUUID string) ([]Invitee, error) {
	key := keyInvitees + eventUUID
	if v, ok := c.cache.Get(key); ok {
		return v.([]Invitee), nil
	}

	data, err := c.request(ctx, "get_event_invitees", http.MethodGet, "/scheduled_events/"+eventUUID+"/invitees", nil, nil)
	if err != nil {
		return nil, err
	}
	var invitees []Invitee
	if err := decodeCollection(data, &invitees); err != nil {
		return nil, err
	}
	c.cache.Put(key, invitees)
	return invitees, nil
}

// FindEventsByInviteeEmail finds active scheduled events where email
// is an invitee, each enriched with the matching invitee's details.
//
// The result is cached under the normalized identity key until a write
// invalidates it. Concurrent misses for the same identity are
// collapsed into one remote fetch. A failure fetching invitees for one
// event is logged and that event is included without enrichment.
func (c *Client) FindEventsByInviteeEmail(ctx context.Context, email string) ([]Event, error) {
	key := keyEventsByEmail + strings.ToLower(email)
	if v, ok := c.cache.Get(key); ok {
		return v.([]Event), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.cache.Get(key); ok {
			return v.([]Event), nil
		}
		events, err := c.fetchEventsByInviteeEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		c.cache.Put(key, events)
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Event), nil
}

// fetchEventsByInviteeEmail performs the remote lookup behind
// FindEventsByInviteeEmail, enriching events concurrently with a
// bounded worker fan-out.
func (c *Client) fetchEventsByInviteeEmail(ctx context.Context, email string) ([]Event, error) {
	userURI, err := c.CurrentUserURI(ctx)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"user":          userURI,
		"status":        "active",
		"invitee_email": email,
	}
	data, err := c.request(ctx, "find_events_by_invitee_email", http.MethodGet, "/scheduled_events", params, nil)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := decodeCollection(data, &events); err != nil {
		return nil, err
	}

	results := make([]Event, len(events))
	sem := make(chan struct{}, enrichConcurrency)
	var wg sync.WaitGroup
	for i := range events {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = c.enrichEvent(ctx, events[i], email)
		}(i)
	}
	wg.Wait()

	return results, nil
}

// enrichEvent attaches the invitee matching email to event. On a
// sub-fetch failure the bare event is returned (partial success).
func (c *Client) enrichEvent(ctx context.Context, event Event, email string) Event {
	uuid := EventUUID(event.URI)
	invitees, err := c.EventInvitees(ctx, uuid)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("event_uuid", uuid).
			Msg("Could not fetch invitees for event")
		return event
	}
	for i := range invitees {
		if strings.EqualFold(invitees[i].Email, email) {
			event.Invitee = &invitees[i]
			break
		}
	}
	return event
}

// CreateSchedulingLink creates a single-use scheduling link for an
// event type and returns the booking URL.
func (c *Client) CreateSchedulingLink(ctx context.Context, eventTypeURI string, maxEventCount int) (string, error) {
	if maxEventCount <= 0 {
		maxEventCount = 1
	}
	body := map[string]any{
		"max_event_count": maxEventCount,
		"owner":           eventTypeURI,
		"owner_type":      "EventType",
	}
	data, err := c.request(ctx, "create_scheduling_link", http.MethodPost, "/scheduling_links", nil, body)
	if err != nil {
		return "", err
	}
	var link struct {
		BookingURL string `json:"booking_url"`
	}
	if err := decodeResource(data, &link); err != nil {
		return "", err
	}
	return link.BookingURL, nil
}

// CreateInvitee books a slot by adding an invitee to an event type,
// using the POST /invitees Scheduling API. On success the cached event
// list for the invitee's email is invalidated so the next lookup is
// forced fresh.
func (c *Client) CreateInvitee(ctx context.Context, req CreateInviteeRequest) (*Invitee, error) {
	timezone := req.Timezone
	if timezone == "" {
		timezone = "Europe/London"
	}

	locations, err := c.eventTypeLocations(ctx, req.EventTypeURI)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"event_type": req.EventTypeURI,
		"start_time": req.StartTime,
		"invitee": map[string]any{
			"name":     req.Name,
			"email":    req.Email,
			"timezone": timezone,
		},
	}
	if len(locations) > 0 {
		body["location"] = map[string]any{
			"kind":     locations[0].Kind,
			"location": locations[0].Location,
		}
	}

	data, err := c.request(ctx, "create_invitee", http.MethodPost, "/invitees", nil, body)
	if err != nil {
		return nil, err
	}
	var invitee Invitee
	if err := decodeResource(data, &invitee); err != nil {
		return nil, err
	}

	c.invalidateEventsForEmail(req.Email)
	c.logger.Info().
		Str("email", req.Email).
		Msg("Cache invalidated after booking")

	return &invitee, nil
}

// CancelEvent cancels a scheduled event by its opaque identifier. On
// success the identity-indexed cache entry referencing this event is
// found by reverse scan and invalidated, along with the event-scoped
// invitee entry. No cached reference is a no-op, not an error.
func (c *Client) CancelEvent(ctx context.Context, eventUUID, reason string) (*Cancellation, error) {
	if reason == "" {
		reason = DefaultReason
	}

	data, err := c.request(ctx, "cancel_event", http.MethodPost,
		"/scheduled_events/"+eventUUID+"/cancellation",
		nil, map[string]any{"reason": reason})
	if err != nil {
		return nil, err
	}
	var cancellation Cancellation
	if err := decodeResource(data, &cancellation); err != nil {
		return nil, err
	}

	c.invalidateEventsForEventUUID(eventUUID)
	c.logger.Info().
		Str("event_uuid", eventUUID).
		Msg("Cache invalidated after cancellation")

	return &cancellation, nil
}

// eventTypeLocations returns the location fragment of an event type,
// fetched lazily on first use and cached under an item-scoped key.
func (c *Client) eventTypeLocations(ctx context.Context, eventTypeURI string) ([]Location, error) {
	key := keyEventTypeLoc + eventTypeURI
	if v, ok := c.cache.Get(key); ok {
		return v.([]Location), nil
	}

	path := strings.TrimPrefix(eventTypeURI, c.config.BaseURL)
	data, err := c.request(ctx, "get_event_type", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var et struct {
		Locations []Location `json:"locations"`
	}
	if err := decodeResource(data, &et); err != nil {
		return nil, err
	}
	if et.Locations == nil {
		et.Locations = []Location{}
	}
	c.cache.Put(key, et.Locations)
	return et.Locations, nil
}

// invalidateEventsForEmail drops the cached event list for email.
// Exact-key invalidation: the identity is known from the caller's own
// arguments.
func (c *Client) invalidateEventsForEmail(email string) {
	key := keyEventsByEmail + strings.ToLower(email)
	if c.cache.Invalidate(key) {
		c.logger.Debug().Str("key", key).Msg("Invalidated cache entry")
	}
}

// invalidateEventsForEventUUID finds which identity's cached event
// list references eventUUID and invalidates it. CancelEvent only
// receives the UUID, not the invitee email, so the key is recovered by
// a reverse scan over the identity namespace.
func (c *Client) invalidateEventsForEventUUID(eventUUID string) {
	if key, ok := c.cache.FindKeyContainingValue(keyEventsByEmail, eventUUID); ok {
		c.cache.Invalidate(key)
		c.logger.Debug().
			Str("key", key).
			Str("event_uuid", eventUUID).
			Msg("Invalidated cache entry referencing event")
	}
	c.cache.Invalidate(keyInvitees + eventUUID)
}
