package quiz

import (
	"fmt"
	"math"

	"course-quiz-service/internal/domain"
)

// Policy holds the per-topic classification thresholds.
type Policy struct {
	WeakBelow float64 // ratio strictly below is a weak area
	StrongAt  float64 // ratio at or above is a strong area
}

// DefaultPolicy classifies below 60% as weak and from 80% as strong.
var DefaultPolicy = Policy{WeakBelow: 0.60, StrongAt: 0.80}

type topicTally struct {
	answered int
	correct  int
}

// Score aggregates committed answers into results. Answers are reported in
// question order; topics are listed in the order they first appear.
func Score(questions []domain.Question, answers map[string]domain.Answer, totalTime int, policy Policy) (domain.Results, error) {
	total := len(questions)
	if total == 0 {
		return domain.Results{}, domain.ErrNoQuestions
	}

	ordered := make([]domain.Answer, 0, len(answers))
	tallies := make(map[string]*topicTally)
	topics := make([]string, 0)
	correct := 0

	for _, q := range questions {
		if _, seen := tallies[q.Topic]; !seen {
			tallies[q.Topic] = &topicTally{}
			topics = append(topics, q.Topic)
		}
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		if a.SelectedAnswer < 0 || a.SelectedAnswer >= len(q.Options) {
			return domain.Results{}, fmt.Errorf("answer for %q: %w", q.ID, domain.ErrOptionOutOfRange)
		}
		isCorrect := a.SelectedAnswer == q.CorrectAnswer
		a.IsCorrect = isCorrect
		ordered = append(ordered, a)

		t := tallies[q.Topic]
		t.answered++
		if isCorrect {
			t.correct++
			correct++
		}
	}

	weak, strong := classify(topics, tallies, policy)
	return domain.Results{
		Score:          int(math.Round(float64(correct) / float64(total) * 100)),
		TotalQuestions: total,
		CorrectAnswers: correct,
		TotalTime:      totalTime,
		Answers:        ordered,
		WeakAreas:      weak,
		StrongAreas:    strong,
	}, nil
}

func classify(topics []string, tallies map[string]*topicTally, policy Policy) (weak, strong []string) {
	weak = []string{}
	strong = []string{}
	for _, topic := range topics {
		t := tallies[topic]
		if t.answered == 0 {
			continue
		}
		ratio := float64(t.correct) / float64(t.answered)
		switch {
		case ratio < policy.WeakBelow:
			weak = append(weak, topic)
		case ratio >= policy.StrongAt:
			strong = append(strong, topic)
		}
	}
	return weak, strong
}
