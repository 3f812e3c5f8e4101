package repository

import (
	"context"
	"database/sql"
	"fmt"

	"edugame/internal/database"
	"edugame/internal/models"
)

// FeedbackRepository handles database operations for feedback tickets
type FeedbackRepository struct {
	db *database.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *database.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

const feedbackColumns = `id, user_id, user_name, feedback_type, category, title, description, game_id, question_id, level_id, priority, status, admin_comments, submitted_at, updated_at, resolved_at, resolved_by`

func scanFeedback(row rowScanner) (*models.Feedback, error) {
	f := &models.Feedback{}
	var userID, userName, gameID, questionID, levelID, adminComments, resolvedBy sql.NullString
	var resolvedAt sql.NullTime

	if err := row.Scan(
		&f.ID,
		&userID,
		&userName,
		&f.Type,
		&f.Category,
		&f.Title,
		&f.Description,
		&gameID,
		&questionID,
		&levelID,
		&f.Priority,
		&f.Status,
		&adminComments,
		&f.SubmittedAt,
		&f.UpdatedAt,
		&resolvedAt,
		&resolvedBy,
	); err != nil {
		return nil, err
	}

	f.UserID = userID.String
	f.UserName = userName.String
	f.GameID = gameID.String
	f.QuestionID = questionID.String
	f.LevelID = levelID.String
	f.AdminComments = adminComments.String
	f.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		f.ResolvedAt = &t
	}
	return f, nil
}

// Create inserts a feedback ticket
func (r *FeedbackRepository) Create(ctx context.Context, f *models.Feedback) error {
	query := `
		INSERT INTO feedback (` + feedbackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, nullString(f.UserID), nullString(f.UserName), f.Type, f.Category, f.Title, f.Description,
		nullString(f.GameID), nullString(f.QuestionID), nullString(f.LevelID), f.Priority, f.Status,
		nullString(f.AdminComments), f.SubmittedAt, f.UpdatedAt, nullTime(f.ResolvedAt), nullString(f.ResolvedBy),
	)
	if err != nil {
		if r.db.Dialect.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket, or nil when it does not exist
func (r *FeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	query := "SELECT " + feedbackColumns + " FROM feedback WHERE id = ?"
	f, err := scanFeedback(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return f, nil
}

// List retrieves tickets matching filter, newest first.
// SearchText matches title, description and user name, case-insensitively.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, error) {
	var conditions []string
	var args []any

	if filter.Type != "" {
		conditions = append(conditions, "feedback_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "submitted_at >= ?")
		args = append(args, filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "submitted_at <= ?")
		args = append(args, filter.DateTo.UTC())
	}
	if filter.SearchText != "" {
		pattern := likePattern(filter.SearchText)
		conditions = append(conditions, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(COALESCE(user_name, '')) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	query := "SELECT " + feedbackColumns + " FROM feedback" + whereClause(conditions) + " ORDER BY submitted_at DESC, id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	tickets := []models.Feedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		tickets = append(tickets, *f)
	}
	return tickets, rows.Err()
}

// UpdateStatus persists the triage fields of a ticket
func (r *FeedbackRepository) UpdateStatus(ctx context.Context, f *models.Feedback) (bool, error) {
	query := `
		UPDATE feedback
		SET status = ?, admin_comments = ?, updated_at = ?, resolved_at = ?, resolved_by = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		f.Status, nullString(f.AdminComments), f.UpdatedAt, nullTime(f.ResolvedAt), nullString(f.ResolvedBy), f.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update feedback: %w", err)
	}
	return affected(result)
}

// Delete removes a ticket
func (r *FeedbackRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete feedback: %w", err)
	}
	return affected(result)
}
