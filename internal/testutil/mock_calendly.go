// Package testutil provides testing utilities for the booking agent.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// failurePlan injects a number of failing responses for one path.
type failurePlan struct {
	statusCode int
	remaining  int
	delay      time.Duration
}

// MockCalendly is a configurable mock Calendly API server for testing.
// It serves the resource/collection envelopes of the real API and
// supports per-path failure injection and request counting.
type MockCalendly struct {
	server *httptest.Server

	mu         sync.Mutex
	handlers   map[string]http.HandlerFunc
	failures   map[string]*failurePlan
	pathCounts map[string]int

	// LastAuthHeader records the Authorization header of the most
	// recent request.
	LastAuthHeader string
}

// NewMockCalendly creates a mock server with fixture handlers for every
// endpoint the client consumes.
func NewMockCalendly() *MockCalendly {
	mock := &MockCalendly{
		handlers:   make(map[string]http.HandlerFunc),
		failures:   make(map[string]*failurePlan),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.pathCounts[r.URL.Path]++
		mock.LastAuthHeader = r.Header.Get("Authorization")
		plan := mock.failures[r.URL.Path]
		var failWith int
		var delay time.Duration
		if plan != nil && plan.remaining > 0 {
			plan.remaining--
			failWith = plan.statusCode
			delay = plan.delay
		}
		handler := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if failWith > 0 {
			w.WriteHeader(failWith)
			fmt.Fprintf(w, `{"title":"Injected Failure","message":"injected %d"}`, failWith)
			return
		}

		if handler != nil {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL. Use it as the client's BaseURL.
func (m *MockCalendly) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCalendly) Close() {
	m.server.Close()
}

// Handle overrides the handler for an exact path.
func (m *MockCalendly) Handle(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// FailTimes makes the next n requests to path fail with statusCode.
func (m *MockCalendly) FailTimes(path string, statusCode, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = &failurePlan{statusCode: statusCode, remaining: n}
}

// DelayTimes makes the next n requests to path stall for d before
// responding with statusCode. With a client timeout below d this
// simulates a network timeout.
func (m *MockCalendly) DelayTimes(path string, d time.Duration, statusCode, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = &failurePlan{statusCode: statusCode, remaining: n, delay: d}
}

// Count returns the number of requests served for path.
func (m *MockCalendly) Count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[path]
}

// Reset clears counters and failure plans.
func (m *MockCalendly) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pathCounts = make(map[string]int)
	m.failures = make(map[string]*failurePlan)
}

// Fixture identifiers used by the default handlers.
const (
	EventTypeID = "ET1"
	EventID     = "EVT1"
	UserEmail   = "alice@example.com"
	UserName    = "Alice Smith"
)

// EventTypeURI returns the fixture event type URI rooted at the mock's
// own base URL.
func (m *MockCalendly) EventTypeURI() string {
	return m.server.URL + "/event_types/" + EventTypeID
}

// EventURI returns the fixture scheduled event URI.
func (m *MockCalendly) EventURI() string {
	return m.server.URL + "/scheduled_events/" + EventID
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// defaultHandler serves the canned Calendly fixtures.
func (m *MockCalendly) defaultHandler(w http.ResponseWriter, r *http.Request) {
	base := m.server.URL
	path := r.URL.Path

	switch {
	case path == "/users/me":
		writeJSON(w, map[string]any{
			"resource": map[string]any{
				"uri":  base + "/users/USER1",
				"name": "Acme Dental",
			},
		})

	case path == "/event_types":
		writeJSON(w, map[string]any{
			"collection": []map[string]any{{
				"uri":            m.EventTypeURI(),
				"name":           "Dental Check-up",
				"active":         true,
				"duration":       30,
				"scheduling_url": "https://calendly.com/acme-dental/check-up",
			}},
		})

	case path == "/event_types/"+EventTypeID:
		writeJSON(w, map[string]any{
			"resource": map[string]any{
				"uri":      m.EventTypeURI(),
				"name":     "Dental Check-up",
				"active":   true,
				"duration": 30,
				"locations": []map[string]any{{
					"kind":     "physical",
					"location": "12 High Street, London",
				}},
			},
		})

	case path == "/event_type_available_times":
		writeJSON(w, map[string]any{
			"collection": []map[string]any{
				{"start_time": "2026-02-17T09:00:00Z", "status": "available", "invitees_remaining": 1},
				{"start_time": "2026-02-17T09:30:00Z", "status": "unavailable", "invitees_remaining": 0},
				{"start_time": "2026-02-17T10:00:00Z", "status": "available", "invitees_remaining": 1},
			},
		})

	case path == "/scheduled_events":
		writeJSON(w, map[string]any{
			"collection": []map[string]any{{
				"uri":        m.EventURI(),
				"name":       "Dental Check-up",
				"status":     "active",
				"start_time": "2026-02-17T09:00:00Z",
				"end_time":   "2026-02-17T09:30:00Z",
			}},
		})

	case strings.HasPrefix(path, "/scheduled_events/") && strings.HasSuffix(path, "/invitees"):
		writeJSON(w, map[string]any{
			"collection": []map[string]any{{
				"uri":            base + path + "/INV1",
				"name":           UserName,
				"email":          UserEmail,
				"status":         "active",
				"cancel_url":     "https://calendly.com/cancellations/INV1",
				"reschedule_url": "https://calendly.com/reschedulings/INV1",
			}},
		})

	case strings.HasPrefix(path, "/scheduled_events/") && strings.HasSuffix(path, "/cancellation") && r.Method == http.MethodPost:
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, map[string]any{
			"resource": map[string]any{
				"canceled_by":   "Acme Dental",
				"reason":        body.Reason,
				"canceler_type": "host",
			},
		})

	case path == "/invitees" && r.Method == http.MethodPost:
		var body struct {
			Invitee struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"invitee"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, map[string]any{
			"resource": map[string]any{
				"uri":            m.EventURI() + "/invitees/INV1",
				"name":           body.Invitee.Name,
				"email":          body.Invitee.Email,
				"status":         "active",
				"cancel_url":     "https://calendly.com/cancellations/INV1",
				"reschedule_url": "https://calendly.com/reschedulings/INV1",
			},
		})

	case path == "/scheduling_links" && r.Method == http.MethodPost:
		writeJSON(w, map[string]any{
			"resource": map[string]any{
				"booking_url": "https://calendly.com/d/abc-def",
				"owner_type":  "EventType",
			},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"title":"Resource Not Found","message":"no fixture for %s"}`, path)
	}
}
