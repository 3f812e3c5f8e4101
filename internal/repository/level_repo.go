package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"edugame/internal/database"
	"edugame/internal/models"
)

// LevelRepository handles database operations for levels and their question lists
type LevelRepository struct {
	db *database.DB
}

// NewLevelRepository creates a new level repository
func NewLevelRepository(db *database.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

const levelColumns = `id, title, description, grade, subject, difficulty, pass_score, is_active, created_by, created_at, updated_at`

func scanLevel(row rowScanner) (*models.Level, error) {
	l := &models.Level{}
	err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Description,
		&l.Grade,
		&l.Subject,
		&l.Difficulty,
		&l.PassScore,
		&l.IsActive,
		&l.CreatedBy,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Create inserts a level together with its ordered question ids
func (r *LevelRepository) Create(ctx context.Context, level *models.Level) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO levels (` + levelColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			level.ID, level.Title, level.Description, level.Grade, level.Subject, level.Difficulty,
			level.PassScore, level.IsActive, level.CreatedBy, level.CreatedAt, level.UpdatedAt,
		)
		if err != nil {
			if r.db.Dialect.IsUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to create level: %w", err)
		}

		return r.insertQuestions(ctx, tx, level.ID, level.QuestionIDs)
	})
}

func (r *LevelRepository) insertQuestions(ctx context.Context, tx *database.Tx, levelID string, questionIDs []string) error {
	for position, questionID := range questionIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO level_questions (level_id, question_id, position) VALUES (?, ?, ?)",
			levelID, questionID, position,
		)
		if err != nil {
			if r.db.Dialect.IsForeignKeyViolation(err) {
				return fmt.Errorf("unknown question %s: %w", questionID, ErrReferenced)
			}
			return fmt.Errorf("failed to link question %s: %w", questionID, err)
		}
	}
	return nil
}

// GetByID retrieves a level with its question ids, or nil when it does not exist
func (r *LevelRepository) GetByID(ctx context.Context, id string) (*models.Level, error) {
	query := "SELECT " + levelColumns + " FROM levels WHERE id = ?"
	level, err := scanLevel(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get level: %w", err)
	}

	ids, err := r.questionIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	level.QuestionIDs = nonNil(ids[id])
	level.TotalQuestions = len(level.QuestionIDs)
	return level, nil
}

// List retrieves levels matching filters in creation order.
// Search matches title and description, case-insensitively.
func (r *LevelRepository) List(ctx context.Context, filters models.LevelFilters) ([]models.Level, error) {
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
		conditions = append(conditions, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + levelColumns + " FROM levels" + whereClause(conditions) + " ORDER BY created_at, id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels: %w", err)
	}
	defer rows.Close()

	levels := []models.Level{}
	var levelIDs []string
	for rows.Next() {
		level, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, *level)
		levelIDs = append(levelIDs, level.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	ids, err := r.questionIDs(ctx, levelIDs)
	if err != nil {
		return nil, err
	}
	for i := range levels {
		levels[i].QuestionIDs = nonNil(ids[levels[i].ID])
		levels[i].TotalQuestions = len(levels[i].QuestionIDs)
	}
	return levels, nil
}

// questionIDs loads the ordered question ids of each level
func (r *LevelRepository) questionIDs(ctx context.Context, levelIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(levelIDs))
	if len(levelIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(levelIDs))
	for i, id := range levelIDs {
		args[i] = id
	}

	query := "SELECT level_id, question_id FROM level_questions WHERE level_id IN (" + placeholders(len(levelIDs)) + ") ORDER BY level_id, position"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query level questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var levelID, questionID string
		if err := rows.Scan(&levelID, &questionID); err != nil {
			return nil, fmt.Errorf("failed to scan level question: %w", err)
		}
		result[levelID] = append(result[levelID], questionID)
	}
	return result, rows.Err()
}

// Update overwrites a level's fields. When replaceQuestions is set the question list is replaced too.
// It reports whether the level existed.
func (r *LevelRepository) Update(ctx context.Context, level *models.Level, replaceQuestions bool) (bool, error) {
	var found bool
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			UPDATE levels
			SET title = ?, description = ?, grade = ?, subject = ?, difficulty = ?, pass_score = ?, is_active = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			level.Title, level.Description, level.Grade, level.Subject, level.Difficulty,
			level.PassScore, level.IsActive, level.UpdatedAt, level.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update level: %w", err)
		}
		if found, err = affected(result); err != nil || !found {
			return err
		}

		if !replaceQuestions {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM level_questions WHERE level_id = ?", level.ID); err != nil {
			return fmt.Errorf("failed to clear level questions: %w", err)
		}
		return r.insertQuestions(ctx, tx, level.ID, level.QuestionIDs)
	})
	return found, err
}

// Delete removes a level; its question links cascade
func (r *LevelRepository) Delete(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM level_questions WHERE level_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete level questions: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM levels WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete level: %w", err)
		}
		found, err = affected(result)
		return err
	})
	return found, err
}

// Stats summarizes the active levels
func (r *LevelRepository) Stats(ctx context.Context) (*models.LevelStats, error) {
	stats := &models.LevelStats{
		ByGrade:      map[int]int{},
		BySubject:    map[models.Subject]int{},
		ByDifficulty: map[models.Difficulty]int{},
	}

	if err := groupCounts(ctx, r.db, "levels", "grade", func(key string, n int) {
		grade, _ := strconv.Atoi(key)
		stats.ByGrade[grade] = n
		stats.Total += n
	}); err != nil {
		return nil, err
	}
	if err := groupCounts(ctx, r.db, "levels", "subject", func(key string, n int) {
		stats.BySubject[models.Subject(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := groupCounts(ctx, r.db, "levels", "difficulty", func(key string, n int) {
		stats.ByDifficulty[models.Difficulty(key)] = n
	}); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, "SELECT AVG(pass_score) FROM levels WHERE is_active = ?", true).Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to average pass score: %w", err)
	}
	stats.AveragePassScore = roundTo(avg.Float64, 1)

	return stats, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
