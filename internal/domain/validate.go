package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateQuestions checks a question set before a session may start.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if err := validate.Struct(q); err != nil {
			return fmt.Errorf("%w: question %d: %v", ErrInvalidQuestion, i, err)
		}
		if q.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("%w: question %q: correct answer %d outside %d options", ErrInvalidQuestion, q.ID, q.CorrectAnswer, len(q.Options))
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}
