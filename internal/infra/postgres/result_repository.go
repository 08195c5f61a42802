package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"course-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// ResultRepository stores completed session results with bun.
type ResultRepository struct {
	db *bun.DB
}

func NewResultRepository(db *bun.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

type resultRow struct {
	bun.BaseModel `bun:"table:quiz_results"`

	SessionID     string         `bun:"session_id,pk"`
	QuizID        string         `bun:"quiz_id,notnull"`
	UserID        string         `bun:"user_id"`
	CategoryTitle string         `bun:"category_title"`
	Score         int            `bun:"score,notnull"`
	Results       domain.Results `bun:"results,type:jsonb"`
	CompletedAt   time.Time      `bun:"completed_at,notnull"`
}

// SaveResult inserts the result; a session's first stored result wins.
func (r *ResultRepository) SaveResult(ctx context.Context, result domain.SessionResult) error {
	row := resultRow{
		SessionID:     result.SessionID,
		QuizID:        result.QuizID,
		UserID:        result.UserID,
		CategoryTitle: result.CategoryTitle,
		Score:         result.Results.Score,
		Results:       result.Results,
		CompletedAt:   result.CompletedAt,
	}
	if _, err := r.db.NewInsert().Model(&row).On("CONFLICT (session_id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (r *ResultRepository) GetResult(ctx context.Context, sessionID string) (domain.SessionResult, error) {
	var row resultRow
	err := r.db.NewSelect().Model(&row).Where("session_id = ?", sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionResult{}, domain.ErrResultsNotFound
	}
	if err != nil {
		return domain.SessionResult{}, fmt.Errorf("get result: %w", err)
	}
	return domain.SessionResult{
		SessionID:     row.SessionID,
		QuizID:        row.QuizID,
		UserID:        row.UserID,
		CategoryTitle: row.CategoryTitle,
		Results:       row.Results,
		CompletedAt:   row.CompletedAt,
	}, nil
}
