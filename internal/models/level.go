package models

import "time"

// Level is an ordered selection of questions that forms one playable game
type Level struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Grade          int        `json:"grade"`
	Subject        Subject    `json:"subject"`
	Difficulty     Difficulty `json:"difficulty"`
	PassScore      int        `json:"passScore"`
	TotalQuestions int        `json:"totalQuestions"`
	QuestionIDs    []string   `json:"questionIds"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CreatedBy      string     `json:"createdBy"`
}

// LevelForm is the input for creating a level
type LevelForm struct {
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Grade       int        `json:"grade" validate:"min=1,max=5"`
	Subject     Subject    `json:"subject" validate:"subject"`
	Difficulty  Difficulty `json:"difficulty" validate:"difficulty"`
	PassScore   int        `json:"passScore" validate:"min=1"`
	QuestionIDs []string   `json:"questionIds" validate:"min=1,unique,dive,required"`
	IsActive    *bool      `json:"isActive,omitempty"`
}

// LevelPatch is a partial update; nil fields are left unchanged.
// QuestionIDs replaces the whole list when non-nil.
type LevelPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Grade       *int        `json:"grade,omitempty"`
	Subject     *Subject    `json:"subject,omitempty"`
	Difficulty  *Difficulty `json:"difficulty,omitempty"`
	PassScore   *int        `json:"passScore,omitempty"`
	QuestionIDs []string    `json:"questionIds,omitempty"`
	IsActive    *bool       `json:"isActive,omitempty"`
}

// LevelFilters narrows a level listing. Zero values match everything.
type LevelFilters struct {
	Grade      int        `json:"grade,omitempty"`
	Subject    Subject    `json:"subject,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Search     string     `json:"search,omitempty"`
}

// LevelStats summarizes the active levels
type LevelStats struct {
	Total            int                `json:"total"`
	ByGrade          map[int]int        `json:"byGrade"`
	BySubject        map[Subject]int    `json:"bySubject"`
	ByDifficulty     map[Difficulty]int `json:"byDifficulty"`
	AveragePassScore float64            `json:"averagePassScore"`
}
