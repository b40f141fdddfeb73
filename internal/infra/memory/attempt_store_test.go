package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"school-quiz-service/internal/domain"
)

func TestAttemptStoreGetOrCreateReusesOpenAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	first, created, err := store.GetOrCreateAttempt(ctx, "test-1", "u1", 3, now)
	if err != nil || !created {
		t.Fatalf("expected new attempt, created=%v err=%v", created, err)
	}
	again, created, err := store.GetOrCreateAttempt(ctx, "test-1", "u1", 3, now.Add(time.Minute))
	if err != nil || created {
		t.Fatalf("expected reuse, created=%v err=%v", created, err)
	}
	if again.ID != first.ID || !again.StartedAt.Equal(now) {
		t.Fatalf("expected same attempt, got %+v vs %+v", again, first)
	}

	finishedAt := now.Add(time.Hour)
	if _, err := store.SaveAttemptSummary(ctx, first.ID, nil, domain.AttemptSummary{Score: 1, MaxScore: 3}, &finishedAt); err != nil {
		t.Fatalf("finish: %v", err)
	}
	n, _ := store.CountFinished(ctx, "test-1", "u1")
	if n != 1 {
		t.Fatalf("expected one finished attempt, got %d", n)
	}
	next, created, _ := store.GetOrCreateAttempt(ctx, "test-1", "u1", 3, finishedAt)
	if !created || next.ID == first.ID {
		t.Fatalf("expected a fresh attempt after finish")
	}
}

func TestAttemptStoreUpsertAnswer(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	attempt, _, _ := store.GetOrCreateAttempt(ctx, "test-1", "u1", 1, time.Now())

	if a, err := store.GetAnswer(ctx, attempt.ID, "q1"); err != nil || a != nil {
		t.Fatalf("expected no answer yet, got %+v err=%v", a, err)
	}

	first, err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: attempt.ID, QuestionID: "q1", FreeText: "Lyon"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: attempt.ID, QuestionID: "q1", FreeText: "Paris"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same answer row, got %s and %s", first.ID, second.ID)
	}
	answers, _ := store.ListAnswers(ctx, attempt.ID)
	if len(answers) != 1 || answers[0].FreeText != "Paris" {
		t.Fatalf("expected one overwritten answer, got %+v", answers)
	}

	done := time.Now()
	if _, err := store.SaveAttemptSummary(ctx, attempt.ID, nil, domain.AttemptSummary{}, &done); err != nil {
		t.Fatalf("finish: %v", err)
	}
	_, err = store.UpsertAnswer(ctx, domain.Answer{AttemptID: attempt.ID, QuestionID: "q1", FreeText: "Rome"})
	var stateErr *domain.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected state error on finished attempt, got %v", err)
	}
}

func TestAttemptStoreSummaryKeepsFirstFinish(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	attempt, _, _ := store.GetOrCreateAttempt(ctx, "test-1", "u1", 1, time.Now())

	first := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)
	if _, err := store.SaveAttemptSummary(ctx, attempt.ID, nil, domain.AttemptSummary{Score: 1, MaxScore: 1}, &first); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, err := store.SaveAttemptSummary(ctx, attempt.ID, nil, domain.AttemptSummary{Score: 0, MaxScore: 1}, &later)
	if err != nil {
		t.Fatalf("refinish: %v", err)
	}
	if !got.FinishedAt.Equal(first) {
		t.Fatalf("expected finish time kept, got %v", got.FinishedAt)
	}
	if got.Score == nil || *got.Score != 0 {
		t.Fatalf("expected score overwritten, got %v", got.Score)
	}
}

func TestAttemptStoreMissingAttempt(t *testing.T) {
	_, err := NewAttemptStore().GetAttempt(context.Background(), "nope")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
