package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	adomain "github.com/lexlapax/go-llms/pkg/agent/domain"

	"github.com/acme-dental/booking-agent/pkg/faq"
	"github.com/acme-dental/booking-agent/pkg/logging"
	"github.com/acme-dental/booking-agent/pkg/session"
)

func TestBuildSystemPrompt_InjectsDateAndFAQ(t *testing.T) {
	now := time.Date(2026, time.February, 17, 10, 30, 0, 0, time.UTC)

	prompt := buildSystemPrompt("### Q\nFAQ BODY HERE", now)

	if !strings.Contains(prompt, "17 February 2026") {
		t.Errorf("Prompt missing date")
	}
	if !strings.Contains(prompt, "Tuesday") {
		t.Errorf("Prompt missing day of week")
	}
	if !strings.Contains(prompt, "10:30") {
		t.Errorf("Prompt missing time")
	}
	if !strings.Contains(prompt, "FAQ BODY HERE") {
		t.Errorf("Prompt missing FAQ content")
	}
	if !strings.Contains(prompt, "Linda") {
		t.Errorf("Prompt missing persona")
	}
}

func TestRenderInput_FirstTurnIsBareMessage(t *testing.T) {
	if got := renderInput(nil, "hello"); got != "hello" {
		t.Errorf("Expected bare message, got %q", got)
	}
}

func TestRenderInput_FoldsHistory(t *testing.T) {
	history := []session.Message{
		{Role: "user", Content: "I need an appointment"},
		{Role: "assistant", Content: "Sure, which day suits you?"},
	}

	out := renderInput(history, "tomorrow morning")

	if !strings.Contains(out, "Patient: I need an appointment") {
		t.Errorf("Missing user turn: %q", out)
	}
	if !strings.Contains(out, "Linda: Sure, which day suits you?") {
		t.Errorf("Missing assistant turn: %q", out)
	}
	if !strings.HasSuffix(out, "Patient: tomorrow morning") {
		t.Errorf("Current message must come last: %q", out)
	}
}

// newTestReceptionist builds a receptionist whose LLM turn is the
// given function, bypassing the real provider.
func newTestReceptionist(runTurn func(ctx context.Context, prompt, input string) (string, error)) *Receptionist {
	return &Receptionist{
		kb:       faq.Parse("### Q\nA"),
		sessions: session.NewMemoryStore(0),
		logger:   logging.NewLogger("agent"),
		now:      time.Now,
		runTurn:  runTurn,
	}
}

func TestChat_StoresBothTurns(t *testing.T) {
	r := newTestReceptionist(func(_ context.Context, prompt, input string) (string, error) {
		if !strings.Contains(prompt, "Linda") {
			t.Errorf("System prompt not applied to turn")
		}
		if input != "hello" {
			t.Errorf("Unexpected input: %q", input)
		}
		return "Hi, how can I help?", nil
	})

	reply, err := r.Chat(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "Hi, how can I help?" {
		t.Errorf("Unexpected reply: %q", reply)
	}

	history, _ := r.sessions.History(context.Background(), "s1")
	if len(history) != 2 {
		t.Fatalf("Expected 2 stored messages, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("Unexpected roles: %+v", history)
	}
}

func TestChat_RunErrorIsNotStored(t *testing.T) {
	r := newTestReceptionist(func(context.Context, string, string) (string, error) {
		return "", fmt.Errorf("provider unavailable")
	})

	if _, err := r.Chat(context.Background(), "s1", "hello"); err == nil {
		t.Fatalf("Expected error from failed run")
	}
	history, _ := r.sessions.History(context.Background(), "s1")
	if len(history) != 0 {
		t.Errorf("Failed turns must not be persisted, got %d messages", len(history))
	}
}

func TestChat_TurnsAreSerialized(t *testing.T) {
	var inFlight, overlaps int32
	r := newTestReceptionist(func(context.Context, string, string) (string, error) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ok", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := r.Chat(context.Background(), fmt.Sprintf("s%d", n), "hello"); err != nil {
				t.Errorf("Chat failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&overlaps) != 0 {
		t.Errorf("Observed %d overlapping turns; the shared agent must run one turn at a time", overlaps)
	}
}

func TestExtractReply(t *testing.T) {
	state := adomain.NewState()
	state.Set("output", "Here are your options")

	if got := extractReply(state); got != "Here are your options" {
		t.Errorf("Unexpected reply: %q", got)
	}
	if got := extractReply(adomain.NewState()); got != "" {
		t.Errorf("Expected empty reply for missing output, got %q", got)
	}
	if got := extractReply(nil); got != "" {
		t.Errorf("Expected empty reply for nil state, got %q", got)
	}
}
