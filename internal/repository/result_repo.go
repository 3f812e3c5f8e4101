package repository

import (
	"context"
	"database/sql"
	"fmt"

	"edugame/internal/database"
	"edugame/internal/models"
)

// ResultRepository stores completed game results. Results are append-only.
type ResultRepository struct {
	db *database.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *database.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `id, session_id, student_id, student_name, level_id, level_title, grade, subject, score, total_questions, stars, duration_seconds, is_offline, completed_at`

// Create appends a result
func (r *ResultRepository) Create(ctx context.Context, result *models.GameResult) error {
	query := `
		INSERT INTO game_results (` + resultColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.SessionID, nullString(result.StudentID), result.StudentName, result.LevelID, result.LevelTitle,
		result.Grade, result.Subject, result.Score, result.TotalQuestions, result.Stars, result.Duration,
		result.IsOffline, result.CompletedAt,
	)
	if err != nil {
		if r.db.Dialect.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create game result: %w", err)
	}
	return nil
}

// List retrieves results matching filter, newest first.
// StudentName matches case-insensitive substrings; the date bounds are inclusive.
func (r *ResultRepository) List(ctx context.Context, filter models.ProgressFilter) ([]models.GameResult, error) {
	var conditions []string
	var args []any

	if filter.Grade != 0 {
		conditions = append(conditions, "grade = ?")
		args = append(args, filter.Grade)
	}
	if filter.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, filter.Subject)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.StudentName != "" {
		conditions = append(conditions, "LOWER(student_name) LIKE ?")
		args = append(args, likePattern(filter.StudentName))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "completed_at >= ?")
		args = append(args, filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "completed_at <= ?")
		args = append(args, filter.DateTo.UTC())
	}

	query := "SELECT " + resultColumns + " FROM game_results" + whereClause(conditions) + " ORDER BY completed_at DESC, id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query game results: %w", err)
	}
	defer rows.Close()

	results := []models.GameResult{}
	for rows.Next() {
		var res models.GameResult
		var studentID sql.NullString
		if err := rows.Scan(
			&res.ID,
			&res.SessionID,
			&studentID,
			&res.StudentName,
			&res.LevelID,
			&res.LevelTitle,
			&res.Grade,
			&res.Subject,
			&res.Score,
			&res.TotalQuestions,
			&res.Stars,
			&res.Duration,
			&res.IsOffline,
			&res.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game result: %w", err)
		}
		res.StudentID = studentID.String
		results = append(results, res)
	}
	return results, rows.Err()
}

// Count returns the number of stored results
func (r *ResultRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM game_results").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count game results: %w", err)
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
