package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStoreIntegration runs the session log against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// testcontainers panics when the Docker socket is missing
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("emojicam_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	first, err := s.StartSession(ctx, "webcam:0", "", "fer")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	second, err := s.StartSession(ctx, "/tmp/clip.mp4", "abc123", "deepface")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if second <= first {
		t.Errorf("Expected increasing session IDs, got %d then %d", first, second)
	}

	if err := s.LogEmotion(ctx, first, Event{FrameIndex: 0, Emotion: "happy", Score: 0.9}); err != nil {
		t.Fatalf("LogEmotion failed: %v", err)
	}
	err = s.LogEmotions(ctx, first, []Event{
		{FrameIndex: 1, Emotion: "happy", Score: 0.8},
		{FrameIndex: 2, Emotion: "sad", Score: 0.6},
	})
	if err != nil {
		t.Fatalf("LogEmotions failed: %v", err)
	}
	if err := s.LogEmotions(ctx, first, nil); err != nil {
		t.Errorf("LogEmotions with no events should be a no-op, got %v", err)
	}

	tally, err := s.SessionTally(ctx, first)
	if err != nil {
		t.Fatalf("SessionTally failed: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"happy": 2, "sad": 1}, tally); diff != "" {
		t.Errorf("SessionTally mismatch (-want +got):\n%s", diff)
	}

	empty, err := s.SessionTally(ctx, second)
	if err != nil {
		t.Fatalf("SessionTally on empty session failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty tally, got %v", empty)
	}

	if _, err := s.SessionTally(ctx, 9999); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if err := s.EndSession(ctx, first); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if err := s.EndSession(ctx, 9999); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	byID := map[int64]Session{}
	for _, sess := range sessions {
		byID[sess.ID] = sess
	}
	if got := byID[first]; got.Events != 3 || got.Dominant != "happy" || got.EndedAt == nil {
		t.Errorf("Unexpected first session summary: %+v", got)
	}
	if got := byID[second]; got.Events != 0 || got.Dominant != "" || got.EndedAt != nil || got.Backend != "deepface" {
		t.Errorf("Unexpected second session summary: %+v", got)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.ListSessions(ctx); err == nil {
		t.Error("Expected ListSessions to fail after tables were dropped")
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
