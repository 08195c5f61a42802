package domain

import "time"

// Difficulty labels a question's level as shown on the course pages.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Débutant"
	DifficultyIntermediate Difficulty = "Intermédiaire"
	DifficultyAdvanced     Difficulty = "Avancé"
)

// Question is an immutable multiple-choice question supplied by the content layer.
type Question struct {
	ID            string     `json:"id" yaml:"id" validate:"required"`
	Prompt        string     `json:"question" yaml:"question" validate:"required"`
	Options       []string   `json:"options" yaml:"options" validate:"min=2,dive,required"`
	CorrectAnswer int        `json:"correctAnswer" yaml:"correctAnswer" validate:"gte=0"`
	Difficulty    Difficulty `json:"difficulty" yaml:"difficulty" validate:"required,oneof=Débutant Intermédiaire Avancé"`
	Topic         string     `json:"topic" yaml:"topic" validate:"required"`
	Points        int        `json:"points" yaml:"points" validate:"gt=0"` // display only, not used in scoring
	Explanation   string     `json:"explanation" yaml:"explanation"`
}

// Quiz is a category's ordered question set.
type Quiz struct {
	ID            string     `json:"id" yaml:"id"`
	CategoryTitle string     `json:"categoryTitle" yaml:"categoryTitle"`
	Questions     []Question `json:"questions" yaml:"questions"`
}

// Answer is the committed response to a single question.
type Answer struct {
	QuestionID     string    `json:"questionId"`
	SelectedAnswer int       `json:"selectedAnswer"`
	IsCorrect      bool      `json:"isCorrect"`
	TimeSpent      int       `json:"timeSpent"` // seconds
	Timestamp      time.Time `json:"timestamp"`
}

// Results is the terminal artifact of a completed session.
type Results struct {
	Score          int      `json:"score"`
	TotalQuestions int      `json:"totalQuestions"`
	CorrectAnswers int      `json:"correctAnswers"`
	TotalTime      int      `json:"totalTime"` // seconds
	Answers        []Answer `json:"answers"`
	WeakAreas      []string `json:"weakAreas"`
	StrongAreas    []string `json:"strongAreas"`
}

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	StatusActive        SessionStatus = "active"
	StatusExitRequested SessionStatus = "exit_requested"
	StatusCompleted     SessionStatus = "completed"
	StatusExited        SessionStatus = "exited"
)

// Terminal reports whether no further mutations are accepted.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExited
}

// QuestionView is a question as rendered to the player. The answer key is
// only disclosed once the question has been answered.
type QuestionView struct {
	ID            string     `json:"id"`
	Prompt        string     `json:"question"`
	Options       []string   `json:"options"`
	Difficulty    Difficulty `json:"difficulty"`
	Topic         string     `json:"topic"`
	Points        int        `json:"points"`
	CorrectAnswer *int       `json:"correctAnswer,omitempty"`
	Explanation   string     `json:"explanation,omitempty"`
}

// SessionView is the render-path snapshot of a session.
type SessionView struct {
	SessionID      string        `json:"sessionId"`
	QuizID         string        `json:"quizId,omitempty"`
	CategoryTitle  string        `json:"categoryTitle"`
	Status         SessionStatus `json:"status"`
	Index          int           `json:"index"`
	Total          int           `json:"total"`
	Progress       int           `json:"progress"` // percent of questions answered
	Answered       int           `json:"answered"`
	Question       QuestionView  `json:"question"`
	Selected       *int          `json:"selected,omitempty"`
	Answer         *Answer       `json:"answer,omitempty"`
	CanGoNext      bool          `json:"canGoNext"`
	CanGoPrevious  bool          `json:"canGoPrevious"`
	IsLast         bool          `json:"isLast"`
	ElapsedSeconds int           `json:"elapsedSeconds"`
	ExitPrompt     bool          `json:"exitPrompt"`
	Results        *Results      `json:"results,omitempty"` // set once completed
	Error          string        `json:"error,omitempty"`
	Retryable      bool          `json:"retryable,omitempty"`
}

// SessionResult is a completed session's results together with who took it.
type SessionResult struct {
	SessionID     string    `json:"sessionId"`
	QuizID        string    `json:"quizId"`
	UserID        string    `json:"userId"`
	CategoryTitle string    `json:"categoryTitle"`
	Results       Results   `json:"results"`
	CompletedAt   time.Time `json:"completedAt"`
}

// Event types published when a session ends.
const (
	EventCompleted = "quiz.completed"
	EventExited    = "quiz.exited"
)

// Event notifies downstream consumers about session outcomes.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	QuizID    string    `json:"quizId"`
	UserID    string    `json:"userId"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload,omitempty"`
}
