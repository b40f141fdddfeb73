package memory

import (
	"context"
	"testing"

	"school-quiz-service/internal/domain"
)

func TestCatalogStoreDeleteQuestionKeepsLinks(t *testing.T) {
	ctx := context.Background()
	store := NewCatalogStore(map[string]domain.Test{"test-1": sampleTest()})

	if err := store.DeleteQuestion(ctx, "q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	affected, err := store.LinkedTests(ctx, "q1")
	if err != nil {
		t.Fatalf("linked tests: %v", err)
	}
	if len(affected) != 1 || affected[0] != "test-1" {
		t.Fatalf("expected test-1 affected, got %v", affected)
	}

	test, err := store.LoadTest(ctx, "test-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(test.Questions) != 2 {
		t.Fatalf("expected the link to stay, got %d links", len(test.Questions))
	}
	if got := test.Gradable(); len(got) != 1 || got[0].QuestionID != "q2" {
		t.Fatalf("expected only q2 to stay gradable, got %+v", got)
	}

	if err := store.DeleteQuestion(ctx, "q1"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestCatalogStorePutQuestionUpdatesTests(t *testing.T) {
	ctx := context.Background()
	store := NewCatalogStore(map[string]domain.Test{"test-1": sampleTest()})

	if err := store.PutQuestion(ctx, domain.Question{ID: "q2", Text: "3 + 3", AnswerType: domain.AnswerNumber, Correct: "6"}); err != nil {
		t.Fatalf("put question: %v", err)
	}
	test, err := store.LoadTest(ctx, "test-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if test.Questions[1].Question.Correct != "6" {
		t.Fatalf("expected edited key to be joined in, got %+v", test.Questions[1].Question)
	}

	q, err := store.GetQuestion(ctx, "q2")
	if err != nil || q.Text != "3 + 3" {
		t.Fatalf("get question: %+v %v", q, err)
	}
}

func TestCatalogStorePutTestReplacesLinks(t *testing.T) {
	ctx := context.Background()
	store := NewCatalogStore(map[string]domain.Test{"test-1": sampleTest()})

	err := store.PutTest(ctx, domain.Test{
		ID:    "test-2",
		Title: "Only numbers",
		Questions: []domain.TestQuestion{
			{QuestionID: "q2", Order: 1, Points: 5},
		},
	})
	if err != nil {
		t.Fatalf("put test: %v", err)
	}
	test, err := store.LoadTest(ctx, "test-2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(test.Questions) != 1 || test.Questions[0].Question == nil || test.Questions[0].TestID != "test-2" {
		t.Fatalf("unexpected links %+v", test.Questions)
	}
}
