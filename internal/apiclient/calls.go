package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"edugame/internal/models"
)

// PlayQuestion is a session question as served to players, without its answer
type PlayQuestion struct {
	ID         string            `json:"id"`
	Prompt     string            `json:"prompt"`
	Options    []string          `json:"options"`
	Difficulty models.Difficulty `json:"difficulty"`
}

// GameSession is a started game
type GameSession struct {
	ID             string         `json:"id"`
	StudentID      string         `json:"studentId,omitempty"`
	StudentName    string         `json:"studentName"`
	LevelID        string         `json:"levelId"`
	LevelTitle     string         `json:"levelTitle"`
	Grade          int            `json:"grade"`
	Subject        models.Subject `json:"subject"`
	Questions      []PlayQuestion `json:"questions"`
	TotalQuestions int            `json:"totalQuestions"`
	StartedAt      time.Time      `json:"startedAt"`
}

// Levels lists levels matching filters
func (c *Client) Levels(ctx context.Context, filters models.LevelFilters) ([]models.Level, error) {
	query := url.Values{}
	if filters.Grade != 0 {
		query.Set("grade", strconv.Itoa(filters.Grade))
	}
	if filters.Subject != "" {
		query.Set("subject", string(filters.Subject))
	}
	if filters.Difficulty != "" {
		query.Set("difficulty", string(filters.Difficulty))
	}
	if filters.Search != "" {
		query.Set("search", filters.Search)
	}

	path := "/api/levels"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var levels []models.Level
	if err := c.optional(ctx, http.MethodGet, path, nil, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// StartGame opens a session. studentName is only used when nobody is signed in.
func (c *Client) StartGame(ctx context.Context, levelID, studentName string) (*GameSession, error) {
	body := map[string]string{"levelId": levelID, "studentName": studentName}

	var session GameSession
	if err := c.optional(ctx, http.MethodPost, "/api/games/start", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SubmitAnswer grades one answer of a running session
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID string, selectedAnswer, timeSpent int) (*models.AnswerResult, error) {
	body := map[string]any{
		"questionId":     questionID,
		"selectedAnswer": selectedAnswer,
		"timeSpent":      timeSpent,
	}

	var result models.AnswerResult
	if err := c.optional(ctx, http.MethodPost, "/api/games/"+url.PathEscape(sessionID)+"/answers", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CompleteGame closes a session and returns the stored result
func (c *Client) CompleteGame(ctx context.Context, sessionID string) (*models.GameResult, error) {
	var result models.GameResult
	if err := c.optional(ctx, http.MethodPost, "/api/games/"+url.PathEscape(sessionID)+"/complete", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Progress returns the signed-in student's progress
func (c *Client) Progress(ctx context.Context) (*models.StudentProgress, error) {
	var progress models.StudentProgress
	if err := c.authed(ctx, http.MethodGet, "/api/games/progress", nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// SubmitFeedback files a feedback ticket
func (c *Client) SubmitFeedback(ctx context.Context, form models.FeedbackForm) (*models.Feedback, error) {
	var feedback models.Feedback
	if err := c.optional(ctx, http.MethodPost, "/api/feedback", form, &feedback); err != nil {
		return nil, err
	}
	return &feedback, nil
}

// Settings returns the signed-in user's settings
func (c *Client) Settings(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	if err := c.authed(ctx, http.MethodGet, "/api/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings applies patch to the signed-in user's settings
func (c *Client) UpdateSettings(ctx context.Context, patch models.AppSettingsPatch) (*models.AppSettings, error) {
	var settings models.AppSettings
	if err := c.authed(ctx, http.MethodPut, "/api/settings", patch, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// RequestPasswordReset asks for a reset email
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/password-reset/request", "", map[string]string{"email": email}, nil)
}

// ConfirmPasswordReset sets a new password with a mailed token
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "newPassword": newPassword}
	return c.do(ctx, http.MethodPost, "/api/auth/password-reset/confirm", "", body, nil)
}
