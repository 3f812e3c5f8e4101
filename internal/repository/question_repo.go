package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"edugame/internal/database"
	"edugame/internal/models"
)

// QuestionRepository handles database operations for the question bank
type QuestionRepository struct {
	db *database.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *database.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = `id, prompt, options_json, correct_answer, grade, subject, difficulty, is_active, created_by, created_at, updated_at`

func scanQuestion(row rowScanner) (*models.Question, error) {
	q := &models.Question{}
	var optionsJSON string
	if err := row.Scan(
		&q.ID,
		&q.Prompt,
		&optionsJSON,
		&q.CorrectAnswer,
		&q.Grade,
		&q.Subject,
		&q.Difficulty,
		&q.IsActive,
		&q.CreatedBy,
		&q.CreatedAt,
		&q.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options for question %s: %w", q.ID, err)
	}
	return q, nil
}

// Create inserts a new question
func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	query := `
		INSERT INTO questions (` + questionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		q.ID, q.Prompt, string(optionsJSON), q.CorrectAnswer, q.Grade, q.Subject, q.Difficulty,
		q.IsActive, q.CreatedBy, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		if r.db.Dialect.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// GetByID retrieves a question by ID, or nil when it does not exist
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*models.Question, error) {
	query := "SELECT " + questionColumns + " FROM questions WHERE id = ?"
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// GetByIDs retrieves the questions with the given ids keyed by id; unknown ids are absent
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Question, error) {
	found := make(map[string]models.Question, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := "SELECT " + questionColumns + " FROM questions WHERE id IN (" + placeholders(len(ids)) + ")"
	questions, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		found[q.ID] = q
	}
	return found, nil
}

// List retrieves questions matching filters in creation order.
// Search matches the prompt and any option, case-insensitively.
func (r *QuestionRepository) List(ctx context.Context, filters models.QuestionFilters) ([]models.Question, error) {
	var conditions []string
	var args []any

	if filters.Grade != 0 {
		conditions = append(conditions, "grade = ?")
		args = append(args, filters.Grade)
	}
	if filters.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, filters.Subject)
	}
	if filters.Difficulty != "" {
		conditions = append(conditions, "difficulty = ?")
		args = append(args, filters.Difficulty)
	}
	if filters.Search != "" {
		pattern := likePattern(filters.Search)
		conditions = append(conditions, "(LOWER(prompt) LIKE ? OR LOWER(options_json) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + questionColumns + " FROM questions" + whereClause(conditions) + " ORDER BY created_at, id"
	return r.query(ctx, query, args...)
}

// ListForPlay retrieves active questions for a grade and subject
func (r *QuestionRepository) ListForPlay(ctx context.Context, grade int, subject models.Subject) ([]models.Question, error) {
	query := "SELECT " + questionColumns + " FROM questions WHERE grade = ? AND subject = ? AND is_active = ? ORDER BY created_at, id"
	return r.query(ctx, query, grade, subject, true)
}

func (r *QuestionRepository) query(ctx context.Context, query string, args ...any) ([]models.Question, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// Update overwrites a question's editable fields. It reports whether the question existed.
func (r *QuestionRepository) Update(ctx context.Context, q *models.Question) (bool, error) {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return false, fmt.Errorf("failed to encode options: %w", err)
	}

	query := `
		UPDATE questions
		SET prompt = ?, options_json = ?, correct_answer = ?, grade = ?, subject = ?, difficulty = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		q.Prompt, string(optionsJSON), q.CorrectAnswer, q.Grade, q.Subject, q.Difficulty, q.IsActive, q.UpdatedAt, q.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update question: %w", err)
	}
	return affected(result)
}

// Delete removes a question. It returns ErrReferenced when a level still uses it.
func (r *QuestionRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		if r.db.Dialect.IsForeignKeyViolation(err) {
			return false, ErrReferenced
		}
		return false, fmt.Errorf("failed to delete question: %w", err)
	}
	return affected(result)
}

// ReferencingLevels returns the ids of levels that include the question
func (r *QuestionRepository) ReferencingLevels(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT level_id FROM level_questions WHERE question_id = ? ORDER BY level_id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query level references: %w", err)
	}
	defer rows.Close()

	var levelIDs []string
	for rows.Next() {
		var levelID string
		if err := rows.Scan(&levelID); err != nil {
			return nil, err
		}
		levelIDs = append(levelIDs, levelID)
	}
	return levelIDs, rows.Err()
}

// Count returns the number of questions in the bank
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// Stats summarizes the active questions
func (r *QuestionRepository) Stats(ctx context.Context) (*models.QuestionStats, error) {
	stats := &models.QuestionStats{
		ByGrade:      map[int]int{},
		BySubject:    map[models.Subject]int{},
		ByDifficulty: map[models.Difficulty]int{},
	}

	err := groupCounts(ctx, r.db, "questions", "grade", func(key string, n int) {
		grade, _ := strconv.Atoi(key)
		stats.ByGrade[grade] = n
		stats.Total += n
	})
	if err != nil {
		return nil, err
	}
	if err := groupCounts(ctx, r.db, "questions", "subject", func(key string, n int) {
		stats.BySubject[models.Subject(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := groupCounts(ctx, r.db, "questions", "difficulty", func(key string, n int) {
		stats.ByDifficulty[models.Difficulty(key)] = n
	}); err != nil {
		return nil, err
	}

	return stats, nil
}

// groupCounts runs COUNT(*) grouped by column over the active rows of table
func groupCounts(ctx context.Context, db database.DBTX, table, column string, fn func(key string, n int)) error {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE is_active = ? GROUP BY %s", column, table, column)
	rows, err := db.QueryContext(ctx, query, true)
	if err != nil {
		return fmt.Errorf("failed to group %s by %s: %w", table, column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key any
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(asString(key), n)
	}
	return rows.Err()
}

// asString normalizes driver values ([]byte from MySQL, int64 from SQLite)
func asString(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
