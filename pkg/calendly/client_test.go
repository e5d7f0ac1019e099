package calendly

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acme-dental/booking-agent/internal/testutil"
	"github.com/acme-dental/booking-agent/pkg/cache"
)

// newTestClient builds a client against the mock server with recorded
// (not executed) backoff sleeps.
func newTestClient(t *testing.T, mock *testutil.MockCalendly) (*Client, *[]time.Duration) {
	t.Helper()

	cfg := Config{
		Token:          "test-token",
		BaseURL:        mock.URL(),
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		Timeout:        2 * time.Second,
	}
	client, err := New(cfg, cache.New(1024*1024))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var sleeps []time.Duration
	var mu sync.Mutex
	client.sleep = func(d time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
	}
	return client, &sleeps
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "valid config",
			config: Config{Token: "tok", BaseURL: "https://api.calendly.com"},
		},
		{
			name:        "missing token",
			config:      Config{BaseURL: "https://api.calendly.com"},
			expectError: true,
		},
		{
			name:        "missing base URL",
			config:      Config{Token: "tok"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config, nil)
			if tt.expectError {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.config.MaxRetries != 3 {
				t.Errorf("MaxRetries default = %d, want 3", client.config.MaxRetries)
			}
			if client.config.Timeout != 15*time.Second {
				t.Errorf("Timeout default = %v, want 15s", client.config.Timeout)
			}
			if client.Cache() == nil {
				t.Error("nil cache should be replaced with a dedicated one")
			}
		})
	}
}

func TestCurrentUserURI_Memoized(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	first, err := client.CurrentUserURI(ctx)
	if err != nil {
		t.Fatalf("CurrentUserURI: %v", err)
	}
	if !strings.HasSuffix(first, "/users/USER1") {
		t.Errorf("URI = %q, want .../users/USER1", first)
	}

	second, err := client.CurrentUserURI(ctx)
	if err != nil {
		t.Fatalf("CurrentUserURI (second): %v", err)
	}
	if second != first {
		t.Errorf("memoized URI changed: %q != %q", second, first)
	}
	if n := mock.Count("/users/me"); n != 1 {
		t.Errorf("/users/me fetched %d times, want 1", n)
	}
}

func TestEventTypes_Cached(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	types, err := client.EventTypes(ctx)
	if err != nil {
		t.Fatalf("EventTypes: %v", err)
	}
	if len(types) != 1 || types[0].Name != "Dental Check-up" {
		t.Fatalf("unexpected event types: %+v", types)
	}

	if _, err := client.EventTypes(ctx); err != nil {
		t.Fatalf("EventTypes (second): %v", err)
	}
	if n := mock.Count("/event_types"); n != 1 {
		t.Errorf("/event_types fetched %d times, want 1 (cached)", n)
	}
}

func TestAvailableTimes_NeverCached(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		slots, err := client.AvailableTimes(ctx, mock.EventTypeURI(), "2026-02-17T00:00:00Z", "2026-02-18T00:00:00Z")
		if err != nil {
			t.Fatalf("AvailableTimes: %v", err)
		}
		if len(slots) != 3 {
			t.Fatalf("got %d slots, want 3", len(slots))
		}
	}
	if n := mock.Count("/event_type_available_times"); n != 2 {
		t.Errorf("availability fetched %d times, want 2 (real-time, uncached)", n)
	}
}

func TestEventInvitees_Cached(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	invitees, err := client.EventInvitees(ctx, testutil.EventID)
	if err != nil {
		t.Fatalf("EventInvitees: %v", err)
	}
	if len(invitees) != 1 || invitees[0].Email != testutil.UserEmail {
		t.Fatalf("unexpected invitees: %+v", invitees)
	}

	if _, err := client.EventInvitees(ctx, testutil.EventID); err != nil {
		t.Fatalf("EventInvitees (second): %v", err)
	}
	path := "/scheduled_events/" + testutil.EventID + "/invitees"
	if n := mock.Count(path); n != 1 {
		t.Errorf("%s fetched %d times, want 1 (cached)", path, n)
	}
}

func TestFindEventsByInviteeEmail_EnrichesAndCaches(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	events, err := client.FindEventsByInviteeEmail(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("FindEventsByInviteeEmail: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Invitee == nil {
		t.Fatal("event should be enriched with invitee details")
	}
	if events[0].Invitee.CancelURL == "" {
		t.Error("enriched invitee missing cancel_url")
	}

	// Cached under the normalized (lower-cased) identity key.
	if !client.Cache().Has("events_by_email:alice@example.com") {
		t.Error("result not cached under the normalized identity key")
	}

	if _, err := client.FindEventsByInviteeEmail(ctx, "alice@example.com"); err != nil {
		t.Fatalf("FindEventsByInviteeEmail (second): %v", err)
	}
	if n := mock.Count("/scheduled_events"); n != 1 {
		t.Errorf("/scheduled_events fetched %d times, want 1 (cached)", n)
	}
}

func TestFindEventsByInviteeEmail_PartialSuccess(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	// Fail the invitee sub-fetch on every attempt: the lookup must
	// still succeed and include the bare event.
	path := "/scheduled_events/" + testutil.EventID + "/invitees"
	mock.FailTimes(path, 503, 10)

	events, err := client.FindEventsByInviteeEmail(ctx, testutil.UserEmail)
	if err != nil {
		t.Fatalf("lookup should not fail on sub-fetch errors: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Invitee != nil {
		t.Error("event should be included without enrichment")
	}
}

func TestCreateInvitee_InvalidatesIdentityCache(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	if _, err := client.FindEventsByInviteeEmail(ctx, testutil.UserEmail); err != nil {
		t.Fatalf("prime lookup: %v", err)
	}
	key := "events_by_email:" + testutil.UserEmail
	if !client.Cache().Has(key) {
		t.Fatal("expected primed cache entry")
	}

	invitee, err := client.CreateInvitee(ctx, CreateInviteeRequest{
		EventTypeURI: mock.EventTypeURI(),
		StartTime:    "2026-02-17T09:00:00Z",
		Name:         testutil.UserName,
		Email:        "Alice@Example.com", // mixed case must still hit the normalized key
	})
	if err != nil {
		t.Fatalf("CreateInvitee: %v", err)
	}
	if invitee.CancelURL == "" {
		t.Error("booking response missing cancel_url")
	}

	if client.Cache().Has(key) {
		t.Error("identity cache entry should be invalidated after booking")
	}

	// Next lookup is forced fresh.
	if _, err := client.FindEventsByInviteeEmail(ctx, testutil.UserEmail); err != nil {
		t.Fatalf("post-booking lookup: %v", err)
	}
	if n := mock.Count("/scheduled_events"); n != 2 {
		t.Errorf("/scheduled_events fetched %d times, want 2 (fresh after write)", n)
	}
}

func TestCreateInvitee_CachesLocationFragment(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	req := CreateInviteeRequest{
		EventTypeURI: mock.EventTypeURI(),
		StartTime:    "2026-02-17T09:00:00Z",
		Name:         testutil.UserName,
		Email:        testutil.UserEmail,
	}
	for i := 0; i < 2; i++ {
		if _, err := client.CreateInvitee(ctx, req); err != nil {
			t.Fatalf("CreateInvitee #%d: %v", i+1, err)
		}
	}

	if n := mock.Count("/event_types/" + testutil.EventTypeID); n != 1 {
		t.Errorf("location fragment fetched %d times, want 1 (cached)", n)
	}
	if n := mock.Count("/invitees"); n != 2 {
		t.Errorf("/invitees posted %d times, want 2", n)
	}
}

func TestCancelEvent_ReverseScanInvalidation(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	// Prime the identity cache; its payload references EVT1 through
	// the event URI, though the email is never passed to cancel.
	if _, err := client.FindEventsByInviteeEmail(ctx, testutil.UserEmail); err != nil {
		t.Fatalf("prime lookup: %v", err)
	}
	identityKey := "events_by_email:" + testutil.UserEmail
	inviteesKey := "invitees:" + testutil.EventID
	if !client.Cache().Has(identityKey) || !client.Cache().Has(inviteesKey) {
		t.Fatal("expected primed cache entries")
	}

	cancellation, err := client.CancelEvent(ctx, testutil.EventID, "feeling better")
	if err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	if cancellation.Reason != "feeling better" {
		t.Errorf("Reason = %q, want the explicit reason", cancellation.Reason)
	}

	if client.Cache().Has(identityKey) {
		t.Error("identity entry referencing the event should be invalidated")
	}
	if client.Cache().Has(inviteesKey) {
		t.Error("event-scoped invitee entry should be invalidated")
	}
}

func TestCancelEvent_NoCachedReferenceIsNoop(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)
	ctx := context.Background()

	client.Cache().Put("events_by_email:bob@example.com", []Event{{URI: mock.URL() + "/scheduled_events/OTHER"}})

	if _, err := client.CancelEvent(ctx, "UNREFERENCED", ""); err != nil {
		t.Fatalf("cancel must succeed without a cached reference: %v", err)
	}
	if !client.Cache().Has("events_by_email:bob@example.com") {
		t.Error("unrelated cache entry must survive")
	}
}

func TestCancelEvent_DefaultReason(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)

	cancellation, err := client.CancelEvent(context.Background(), testutil.EventID, "")
	if err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	if cancellation.Reason != DefaultReason {
		t.Errorf("Reason = %q, want default %q", cancellation.Reason, DefaultReason)
	}
}

func TestCreateSchedulingLink(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()
	client, _ := newTestClient(t, mock)

	url, err := client.CreateSchedulingLink(context.Background(), mock.EventTypeURI(), 0)
	if err != nil {
		t.Fatalf("CreateSchedulingLink: %v", err)
	}
	if url != "https://calendly.com/d/abc-def" {
		t.Errorf("booking URL = %q", url)
	}
}

func TestSharedCacheAcrossClients(t *testing.T) {
	mock := testutil.NewMockCalendly()
	defer mock.Close()

	shared := cache.New(1024 * 1024)
	a, err := New(Config{Token: "tok", BaseURL: mock.URL()}, shared)
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New(Config{Token: "tok", BaseURL: mock.URL()}, shared)
	if err != nil {
		t.Fatalf("New b: %v", err)
	}
	ctx := context.Background()

	if _, err := a.EventTypes(ctx); err != nil {
		t.Fatalf("EventTypes via a: %v", err)
	}
	if _, err := b.EventTypes(ctx); err != nil {
		t.Fatalf("EventTypes via b: %v", err)
	}
	if n := mock.Count("/event_types"); n != 1 {
		t.Errorf("/event_types fetched %d times, want 1 via the shared cache", n)
	}
}
