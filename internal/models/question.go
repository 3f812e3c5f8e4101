package models

import "time"

// Question is a multiple-choice item in the question bank
type Question struct {
	ID            string     `json:"id"`
	Prompt        string     `json:"prompt"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	Grade         int        `json:"grade"`
	Subject       Subject    `json:"subject"`
	Difficulty    Difficulty `json:"difficulty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CreatedBy     string     `json:"createdBy"`
	IsActive      bool       `json:"isActive"`
}

// QuestionForm is the input for creating a question
type QuestionForm struct {
	Prompt        string     `json:"prompt" validate:"required,notblank,max=1000"`
	Options       []string   `json:"options" validate:"min=2,max=10,dive,notblank"`
	CorrectAnswer int        `json:"correctAnswer" validate:"min=0"`
	Grade         int        `json:"grade" validate:"min=1,max=5"`
	Subject       Subject    `json:"subject" validate:"subject"`
	Difficulty    Difficulty `json:"difficulty" validate:"difficulty"`
	IsActive      *bool      `json:"isActive,omitempty"`
}

// QuestionPatch is a partial update; nil fields are left unchanged
type QuestionPatch struct {
	Prompt        *string     `json:"prompt,omitempty"`
	Options       []string    `json:"options,omitempty"`
	CorrectAnswer *int        `json:"correctAnswer,omitempty"`
	Grade         *int        `json:"grade,omitempty"`
	Subject       *Subject    `json:"subject,omitempty"`
	Difficulty    *Difficulty `json:"difficulty,omitempty"`
	IsActive      *bool       `json:"isActive,omitempty"`
}

// QuestionFilters narrows a question listing. Zero values match everything.
type QuestionFilters struct {
	Grade      int        `json:"grade,omitempty"`
	Subject    Subject    `json:"subject,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Search     string     `json:"search,omitempty"`
}

// QuestionStats summarizes the active question bank
type QuestionStats struct {
	Total        int                `json:"total"`
	ByGrade      map[int]int        `json:"byGrade"`
	BySubject    map[Subject]int    `json:"bySubject"`
	ByDifficulty map[Difficulty]int `json:"byDifficulty"`
}

// BulkImportResult reports the outcome of a bulk question import
type BulkImportResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// ImportFormat selects how BulkImportData is encoded
type ImportFormat string

const (
	ImportJSON ImportFormat = "json"
	ImportCSV  ImportFormat = "csv"
)

// BulkImportData is the body of a bulk question import.
// JSON imports carry Questions; CSV imports carry the raw document in CSV
// with the header prompt,options,correctAnswer,grade,subject,difficulty and
// options separated by "|".
type BulkImportData struct {
	Format    ImportFormat   `json:"format"`
	Questions []QuestionForm `json:"questions,omitempty"`
	CSV       string         `json:"csv,omitempty"`
}
