package calendly

import "strings"

// EventType is a bookable offering (e.g. "30 minute dental check-up").
type EventType struct {
	URI           string     `json:"uri"`
	Name          string     `json:"name"`
	Active        bool       `json:"active"`
	Duration      int        `json:"duration"`
	SchedulingURL string     `json:"scheduling_url"`
	Locations     []Location `json:"locations,omitempty"`
}

// Location is the location fragment of an event type configuration,
// needed when constructing a booking payload.
type Location struct {
	Kind     string `json:"kind"`
	Location string `json:"location,omitempty"`
}

// TimeSlot is one entry of an availability query.
type TimeSlot struct {
	StartTime         string `json:"start_time"`
	Status            string `json:"status"`
	SchedulingURL     string `json:"scheduling_url,omitempty"`
	InviteesRemaining int    `json:"invitees_remaining,omitempty"`
}

// Event is a scheduled event. Invitee is populated only by
// FindEventsByInviteeEmail, which enriches each event with the
// matching invitee's details.
type Event struct {
	URI       string   `json:"uri"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Invitee   *Invitee `json:"invitee,omitempty"`
}

// Invitee is a participant of a scheduled event.
type Invitee struct {
	URI           string `json:"uri"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Status        string `json:"status"`
	Timezone      string `json:"timezone,omitempty"`
	CancelURL     string `json:"cancel_url,omitempty"`
	RescheduleURL string `json:"reschedule_url,omitempty"`
}

// Cancellation is the resource returned by an event cancellation.
type Cancellation struct {
	CanceledBy   string `json:"canceled_by"`
	Reason       string `json:"reason"`
	CancelerType string `json:"canceler_type,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// CreateInviteeRequest holds the arguments for booking a slot.
type CreateInviteeRequest struct {
	EventTypeURI string
	StartTime    string // ISO 8601 UTC, e.g. "2026-02-17T09:00:00Z"
	Name         string
	Email        string
	Timezone     string // IANA name; defaults to "Europe/London"
}

// ListEventsOptions filters a scheduled-event listing.
type ListEventsOptions struct {
	MinStartTime string
	MaxStartTime string
	Status       string // "active" or "canceled"; defaults to "active"
}

// EventUUID extracts the opaque event identifier from an event URI.
// Calendly event URIs end in the UUID:
// https://api.calendly.com/scheduled_events/<uuid>
func EventUUID(uri string) string {
	parts := strings.Split(strings.TrimRight(uri, "/"), "/")
	return parts[len(parts)-1]
}
