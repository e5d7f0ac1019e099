package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	adomain "github.com/lexlapax/go-llms/pkg/agent/domain"
	sdomain "github.com/lexlapax/go-llms/pkg/schema/domain"
	"github.com/rs/zerolog"

	"github.com/acme-dental/booking-agent/pkg/calendly"
	"github.com/acme-dental/booking-agent/pkg/faq"
	"github.com/acme-dental/booking-agent/pkg/logging"
)

// Scheduler is the slice of the Calendly client the booking tools
// need. *calendly.Client satisfies it; tests substitute a fake.
type Scheduler interface {
	EventTypes(ctx context.Context) ([]calendly.EventType, error)
	AvailableTimes(ctx context.Context, eventTypeURI, startTime, endTime string) ([]calendly.TimeSlot, error)
	CreateInvitee(ctx context.Context, req calendly.CreateInviteeRequest) (*calendly.Invitee, error)
	FindEventsByInviteeEmail(ctx context.Context, email string) ([]calendly.Event, error)
	CancelEvent(ctx context.Context, eventUUID, reason string) (*calendly.Cancellation, error)
}

// friendlyLayout renders times as "Mon 17 Feb 2026 at 10:30".
const friendlyLayout = "Mon 02 Jan 2006 at 15:04"

const rescheduleReason = "Rescheduled by patient via chat agent"

// emailPattern is RFC-5322-ish: it covers real-world addresses without
// pulling in a validation dependency.
var emailPattern = regexp.MustCompile(
	`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+` +
		`@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?` +
		`(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// validateEmail returns a patient-facing error message for an invalid
// address, or "" when the address is acceptable.
func validateEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "No email address was provided. Please ask the patient for their email."
	}
	if !emailPattern.MatchString(email) {
		return fmt.Sprintf("%q does not look like a valid email address. "+
			"Please ask the patient to double-check and provide a corrected email.", email)
	}
	return ""
}

// formatTime converts an ISO 8601 timestamp to the friendly layout.
// Unparseable input is returned unchanged rather than hidden.
func formatTime(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.Format(friendlyLayout)
}

// Toolbox bundles the six booking tools the receptionist agent can
// call, bound to a Scheduler and the FAQ knowledge base.
type Toolbox struct {
	scheduler Scheduler
	kb        *faq.KnowledgeBase
	logger    zerolog.Logger
}

// NewToolbox binds the booking tools to their backends.
func NewToolbox(scheduler Scheduler, kb *faq.KnowledgeBase) *Toolbox {
	return &Toolbox{
		scheduler: scheduler,
		kb:        kb,
		logger:    logging.NewLogger("tools"),
	}
}

// firstEventTypeURI returns the clinic's single active event type.
func (t *Toolbox) firstEventTypeURI(ctx context.Context) (string, error) {
	eventTypes, err := t.scheduler.EventTypes(ctx)
	if err != nil {
		return "", err
	}
	if len(eventTypes) == 0 {
		return "", fmt.Errorf("no active event types found, check the Calendly configuration")
	}
	return eventTypes[0].URI, nil
}

// toolContext extracts the request context from a tool invocation.
func toolContext(tc *adomain.ToolContext) context.Context {
	if tc != nil && tc.Context != nil {
		return tc.Context
	}
	return context.Background()
}

// stringParam reads a string argument from the LLM's tool call.
func stringParam(params interface{}, key string) string {
	m, ok := params.(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// GetAvailableSlots lists open check-up slots between two dates
// (YYYY-MM-DD, inclusive).
func (t *Toolbox) GetAvailableSlots(tc *adomain.ToolContext, params interface{}) (interface{}, error) {
	startDate := stringParam(params, "start_date")
	endDate := stringParam(params, "end_date")
	ctx := toolContext(tc)

	eventTypeURI, err := t.firstEventTypeURI(ctx)
	if err != nil {
		return t.apology("check availability", err), nil
	}

	slots, err := t.scheduler.AvailableTimes(ctx,
		eventTypeURI,
		startDate+"T00:00:00Z",
		endDate+"T23:59:59Z")
	if err != nil {
		return t.apology("check availability", err), nil
	}

	if len(slots) == 0 {
		return fmt.Sprintf("No available slots found between %s and %s. Please try different dates.",
			startDate, endDate), nil
	}

	var available []calendly.TimeSlot
	for _, s := range slots {
		if s.Status == "available" {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		return fmt.Sprintf("All slots between %s and %s are fully booked. Please try different dates.",
			startDate, endDate), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available 30-minute check-up slots (%s to %s):\n", startDate, endDate)
	for _, slot := range available {
		fmt.Fprintf(&b, "\n  • %s", formatTime(slot.StartTime))
	}
	return b.String(), nil
}

// CreateBooking books a check-up at an exact start time. The booking
// is confirmed immediately and Calendly emails the patient.
func (t *Toolbox) CreateBooking(tc *adomain.ToolContext, params interface{}) (interface{}, error) {
	startTime := stringParam(params, "start_time")
	fullName := stringParam(params, "full_name")
	email := strings.TrimSpace(stringParam(params, "email"))

	if msg := validateEmail(email); msg != "" {
		return msg, nil
	}
	ctx := toolContext(tc)

	eventTypeURI, err := t.firstEventTypeURI(ctx)
	if err != nil {
		return t.apology("complete the booking", err), nil
	}

	invitee, err := t.scheduler.CreateInvitee(ctx, calendly.CreateInviteeRequest{
		EventTypeURI: eventTypeURI,
		StartTime:    startTime,
		Name:         fullName,
		Email:        email,
		Timezone:     "UTC",
	})
	if err != nil {
		return t.apology("complete the booking", err), nil
	}

	cancelURL := invitee.CancelURL
	if cancelURL == "" {
		cancelURL = "N/A"
	}
	rescheduleURL := invitee.RescheduleURL
	if rescheduleURL == "" {
		rescheduleURL = "N/A"
	}

	return fmt.Sprintf("Appointment booked successfully!\n"+
		"  Patient: %s\n"+
		"  Email: %s\n"+
		"  Time: %s\n"+
		"  Duration: 30 minutes\n"+
		"  Cancel link: %s\n"+
		"  Reschedule link: %s\n\n"+
		"Calendly will send a confirmation email to %s with all the details and a calendar invite.",
		fullName, email, formatTime(startTime), cancelURL, rescheduleURL, email), nil
}

// FindBooking looks up a patient's active appointments by email.
func (t *Toolbox) FindBooking(tc *adomain.ToolContext, params interface{}) (interface{}, error) {
	email := strings.TrimSpace(stringParam(params, "email"))
	if msg := validateEmail(email); msg != "" {
		return msg, nil
	}

	events, err := t.scheduler.FindEventsByInviteeEmail(toolContext(tc), email)
	if err != nil {
		return t.apology("look up that booking", err), nil
	}

	if len(events) == 0 {
		return fmt.Sprintf("No active appointments found for %s. "+
			"The patient may not have a booking, or it may have been cancelled.", email), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d active appointment(s) for %s:\n", len(events), email)
	for _, event := range events {
		inviteeName := "N/A"
		if event.Invitee != nil {
			inviteeName = event.Invitee.Name
		}
		fmt.Fprintf(&b, "\n  • Appointment ID: %s\n"+
			"    Patient: %s\n"+
			"    Time: %s – %s\n"+
			"    Status: %s",
			calendly.EventUUID(event.URI),
			inviteeName,
			formatTime(event.StartTime), formatTime(event.EndTime),
			event.Status)
	}
	return b.String(), nil
}

// CancelBooking cancels an appointment by its UUID.
func (t *Toolbox) CancelBooking(tc *adomain.ToolContext, params interface{}) (interface{}, error) {
	eventUUID := stringParam(params, "event_uuid")
	reason := stringParam(params, "reason")
	if reason == "" {
		reason = calendly.DefaultReason
	}

	if _, err := t.scheduler.CancelEvent(toolContext(tc), eventUUID, reason); err != nil {
		return t.apology("cancel the appointment", err), nil
	}

	return fmt.Sprintf("Appointment %s has been successfully cancelled.\n"+
		"Reason: %s\n\n"+
		"Calendly will send a cancellation confirmation email to the patient.\n"+
		"Note: Cancellations made less than 24 hours before the appointment "+
		"may incur a €20 late cancellation fee.", eventUUID, reason), nil
}

// RescheduleBooking cancels an appointment and lists open slots around
// the requested new time; the patient then confirms via CreateBooking.
func (t *Toolbox) RescheduleBooking(tc *adomain.ToolContext, params interface{}) (interface{}, error) {
	eventUUID := stringParam(params, "event_uuid")
	newStartTime := stringParam(params, "new_start_time")
	ctx := toolContext(tc)

	newTime, err := time.Parse(time.RFC3339, newStartTime)
	if err != nil {
		return fmt.Sprintf("%q is not a valid ISO 8601 time. "+
			"Please provide the new time like 2026-02-20T14:00:00Z.", newStartTime), nil
	}

	if _, err := t.scheduler.CancelEvent(ctx, eventUUID, rescheduleReason); err != nil {
		return t.apology("reschedule the appointment", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The original appointment (%s) has been cancelled for rescheduling.\n"+
		"Calendly will send a cancellation notice for the old appointment.\n\n", eventUUID)

	dayStart := time.Date(newTime.Year(), newTime.Month(), newTime.Day(), 0, 0, 0, 0, newTime.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	eventTypeURI, err := t.firstEventTypeURI(ctx)
	if err != nil {
		return t.apology("reschedule the appointment", err), nil
	}
	slots, err := t.scheduler.AvailableTimes(ctx,
		eventTypeURI,
		dayStart.Format(time.RFC3339),
		dayEnd.Format(time.RFC3339))
	if err != nil {
		return t.apology("reschedule the appointment", err), nil
	}

	var available []calendly.TimeSlot
	for _, s := range slots {
		if s.Status == "available" {
			available = append(available, s)
		}
	}

	day := newTime.Format("Mon 02 Jan 2006")
	if len(available) == 0 {
		fmt.Fprintf(&b, "Unfortunately, no slots are available on %s. "+
			"Please ask the patient for alternative dates.", day)
		return b.String(), nil
	}

	fmt.Fprintf(&b, "Available slots on %s:\n", day)
	for _, slot := range available {
		fmt.Fprintf(&b, "  • %s\n", formatTime(slot.StartTime))
	}
	b.WriteString("\nPlease ask the patient which slot they'd like, then use create_booking to confirm.")
	return b.String(), nil
}

// SearchFAQ answers clinic questions from the knowledge base.
func (t *Toolbox) SearchFAQ(_ *adomain.ToolContext, params interface{}) (interface{}, error) {
	return t.kb.Search(stringParam(params, "query")), nil
}

// apology turns an API failure into a patient-facing message. Tools
// never surface raw errors to the LLM as errors; the agent should
// relay the apology and invite a retry.
func (t *Toolbox) apology(action string, err error) string {
	t.logger.Error().Err(err).Str("action", action).Msg("Tool call failed")
	return fmt.Sprintf("Sorry, I couldn't %s right now. Error: %v. Please try again in a moment.", action, err)
}

func stringProperty(desc string) sdomain.Property {
	return sdomain.Property{Type: "string", Description: desc}
}

func toolSchema(required []string, props map[string]sdomain.Property) *sdomain.Schema {
	return &sdomain.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}
