package cli

import (
	"errors"
	"testing"

	"course-quiz-service/internal/domain"
)

func TestPickQuiz(t *testing.T) {
	quizzes := []domain.Quiz{{ID: "a"}, {ID: "b"}}

	if _, err := pickQuiz(quizzes, ""); err == nil {
		t.Fatalf("expected ambiguity error")
	}
	got, err := pickQuiz(quizzes, "b")
	if err != nil || got.ID != "b" {
		t.Fatalf("expected quiz b, got %+v (%v)", got, err)
	}
	if _, err := pickQuiz(quizzes, "c"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	got, err = pickQuiz(quizzes[:1], "")
	if err != nil || got.ID != "a" {
		t.Fatalf("expected single quiz, got %+v (%v)", got, err)
	}
}
