package integration

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/acme-dental/booking-agent/pkg/session"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		container.Terminate(ctx)
	}

	return host + ":" + port.Port(), cleanup
}

func TestRedisStore_AppendAndHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store, err := session.NewRedisStore(ctx, addr, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	defer store.Close()

	if err := store.Append(ctx, "s1", session.Message{Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, "s1", session.Message{Role: "assistant", Content: "hi, how can I help?"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	history, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hello" {
		t.Errorf("Unexpected first message: %+v", history[0])
	}
	if history[1].Role != "assistant" {
		t.Errorf("Unexpected second message: %+v", history[1])
	}
}

func TestRedisStore_SessionsAreIsolated(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store, err := session.NewRedisStore(ctx, addr, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	defer store.Close()

	store.Append(ctx, "a", session.Message{Role: "user", Content: "for a"})
	store.Append(ctx, "b", session.Message{Role: "user", Content: "for b"})

	historyA, err := store.History(ctx, "a")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(historyA) != 1 || historyA[0].Content != "for a" {
		t.Errorf("Session a polluted: %+v", historyA)
	}
}

func TestRedisStore_ClearRemovesHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store, err := session.NewRedisStore(ctx, addr, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	defer store.Close()

	store.Append(ctx, "s1", session.Message{Role: "user", Content: "hello"})
	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	history, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected cleared session, got %d messages", len(history))
	}
}

func TestRedisStore_UnknownSessionIsEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store, err := session.NewRedisStore(ctx, addr, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	defer store.Close()

	history, err := store.History(ctx, "nope")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d", len(history))
	}
}
