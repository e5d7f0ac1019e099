// Package agent assembles the Acme Dental receptionist: an LLM agent
// with booking tools bound to the Calendly client and answers grounded
// in the clinic FAQ. Conversation history is carried per session so
// multi-turn booking flows work across HTTP requests.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lexlapax/go-llms/pkg/agent/core"
	adomain "github.com/lexlapax/go-llms/pkg/agent/domain"
	atools "github.com/lexlapax/go-llms/pkg/agent/tools"
	"github.com/lexlapax/go-llms/pkg/llm/provider"
	sdomain "github.com/lexlapax/go-llms/pkg/schema/domain"
	"github.com/rs/zerolog"

	"github.com/acme-dental/booking-agent/pkg/faq"
	"github.com/acme-dental/booking-agent/pkg/logging"
	"github.com/acme-dental/booking-agent/pkg/session"
)

// Config holds the LLM settings for the receptionist.
type Config struct {
	APIKey string
	Model  string
}

// Receptionist is the conversational booking agent.
type Receptionist struct {
	agent    *core.LLMAgent
	kb       *faq.KnowledgeBase
	sessions session.Store
	logger   zerolog.Logger
	now      func() time.Time

	// mu serializes turns: the system prompt is set on the shared
	// LLMAgent right before each run, so set+run must not interleave.
	mu      sync.Mutex
	runTurn func(ctx context.Context, prompt, input string) (string, error)
}

// New builds the receptionist agent: Anthropic provider, the six
// booking tools, and the FAQ-grounded system prompt.
func New(cfg Config, scheduler Scheduler, kb *faq.KnowledgeBase, sessions session.Store) (*Receptionist, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing Anthropic API key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("missing model name")
	}

	llmProvider := provider.NewAnthropicProvider(cfg.APIKey, cfg.Model)
	llmAgent := core.NewAgent("acme-dental-receptionist", llmProvider)

	toolbox := NewToolbox(scheduler, kb)
	registerTools(llmAgent, toolbox)

	r := &Receptionist{
		agent:    llmAgent,
		kb:       kb,
		sessions: sessions,
		logger:   logging.NewLogger("agent"),
		now:      time.Now,
	}
	r.runTurn = r.llmTurn
	r.logger.Info().
		Str("model", cfg.Model).
		Int("tools", 6).
		Msg("Receptionist agent initialized")
	return r, nil
}

// registerTools attaches the six booking tools with their parameter
// schemas so the LLM knows how to call them.
func registerTools(llmAgent *core.LLMAgent, toolbox *Toolbox) {
	llmAgent.AddTool(atools.NewTool(
		"get_available_slots",
		"Check available dental check-up appointment slots between two dates (YYYY-MM-DD, at most 7 days apart).",
		toolbox.GetAvailableSlots,
		toolSchema([]string{"start_date", "end_date"}, map[string]sdomain.Property{
			"start_date": stringProperty("Start date in YYYY-MM-DD format, e.g. 2026-02-17"),
			"end_date":   stringProperty("End date in YYYY-MM-DD format, within 7 days of start_date"),
		}),
	))
	llmAgent.AddTool(atools.NewTool(
		"create_booking",
		"Book a dental check-up for a patient at an exact start time. The booking is confirmed immediately and Calendly emails the patient.",
		toolbox.CreateBooking,
		toolSchema([]string{"start_time", "full_name", "email"}, map[string]sdomain.Property{
			"start_time": stringProperty("Exact appointment start in ISO 8601, e.g. 2026-02-17T10:30:00Z; must be a slot returned by get_available_slots"),
			"full_name":  stringProperty("The patient's full name"),
			"email":      stringProperty("The patient's email address"),
		}),
	))
	llmAgent.AddTool(atools.NewTool(
		"find_booking",
		"Look up a patient's existing appointments by the email address they booked with.",
		toolbox.FindBooking,
		toolSchema([]string{"email"}, map[string]sdomain.Property{
			"email": stringProperty("The patient's email address"),
		}),
	))
	llmAgent.AddTool(atools.NewTool(
		"cancel_booking",
		"Cancel an existing appointment by its appointment ID (obtain it from find_booking first).",
		toolbox.CancelBooking,
		toolSchema([]string{"event_uuid"}, map[string]sdomain.Property{
			"event_uuid": stringProperty("The appointment ID (UUID) to cancel"),
			"reason":     stringProperty("The reason for cancellation"),
		}),
	))
	llmAgent.AddTool(atools.NewTool(
		"reschedule_booking",
		"Reschedule an appointment: cancels the old one and lists open slots near the requested new time. Confirm the new slot with create_booking.",
		toolbox.RescheduleBooking,
		toolSchema([]string{"event_uuid", "new_start_time"}, map[string]sdomain.Property{
			"event_uuid":     stringProperty("The appointment ID (UUID) to reschedule"),
			"new_start_time": stringProperty("The desired new start time in ISO 8601, e.g. 2026-02-20T14:00:00Z"),
		}),
	))
	llmAgent.AddTool(atools.NewTool(
		"search_faq",
		"Search the clinic's FAQ for questions about services, pricing, policies, or preparation.",
		toolbox.SearchFAQ,
		toolSchema([]string{"query"}, map[string]sdomain.Property{
			"query": stringProperty("The patient's question"),
		}),
	))
}

// Chat runs one conversation turn. History for the session is loaded
// from the store, folded into the prompt, and the exchange is appended
// back afterwards.
func (r *Receptionist) Chat(ctx context.Context, sessionID, message string) (string, error) {
	start := r.now()

	history, err := r.sessions.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session history: %w", err)
	}

	prompt := buildSystemPrompt(r.kb.Full(), r.now())
	input := renderInput(history, message)

	r.mu.Lock()
	reply, err := r.runTurn(ctx, prompt, input)
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("agent run: %w", err)
	}

	if err := r.sessions.Append(ctx, sessionID, session.Message{Role: "user", Content: message}); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}
	if err := r.sessions.Append(ctx, sessionID, session.Message{Role: "assistant", Content: reply}); err != nil {
		return "", fmt.Errorf("store assistant message: %w", err)
	}

	r.logger.Info().
		Str("session_id", sessionID).
		Int("history_len", len(history)).
		Dur("duration", r.now().Sub(start)).
		Msg("Chat turn completed")
	return reply, nil
}

// llmTurn applies the prompt to the shared agent and runs it. Callers
// hold r.mu.
func (r *Receptionist) llmTurn(ctx context.Context, prompt, input string) (string, error) {
	r.agent.SetSystemPrompt(prompt)

	state := adomain.NewState()
	state.Set("user_input", input)

	resultState, err := r.agent.Run(ctx, state)
	if err != nil {
		return "", err
	}
	return extractReply(resultState), nil
}

// renderInput folds prior turns into the user input so the agent sees
// the whole conversation.
func renderInput(history []session.Message, message string) string {
	if len(history) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, msg := range history {
		role := "Patient"
		if msg.Role == "assistant" {
			role = "Linda"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}
	b.WriteString("\nPatient: ")
	b.WriteString(message)
	return b.String()
}

// extractReply pulls the agent's final answer out of the result state.
func extractReply(state *adomain.State) string {
	if state == nil {
		return ""
	}
	if output, ok := state.Get("output"); ok {
		if s, ok := output.(string); ok {
			return s
		}
		return fmt.Sprint(output)
	}
	return ""
}
