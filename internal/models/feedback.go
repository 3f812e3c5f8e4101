package models

import "time"

type FeedbackType string

const (
	FeedbackBug           FeedbackType = "bug"
	FeedbackSuggestion    FeedbackType = "suggestion"
	FeedbackQuestionIssue FeedbackType = "question_issue"
	FeedbackGeneral       FeedbackType = "general"
)

type FeedbackCategory string

const (
	CategoryIncorrectAnswer FeedbackCategory = "incorrect_answer"
	CategorySpellingMistake FeedbackCategory = "spelling_mistake"
	CategoryTechnicalIssue  FeedbackCategory = "technical_issue"
	CategoryContentIssue    FeedbackCategory = "content_issue"
	CategoryOther           FeedbackCategory = "other"
)

type FeedbackPriority string

const (
	PriorityLow      FeedbackPriority = "low"
	PriorityMedium   FeedbackPriority = "medium"
	PriorityHigh     FeedbackPriority = "high"
	PriorityCritical FeedbackPriority = "critical"
)

type FeedbackStatus string

const (
	StatusOpen       FeedbackStatus = "open"
	StatusInProgress FeedbackStatus = "in_progress"
	StatusResolved   FeedbackStatus = "resolved"
	StatusClosed     FeedbackStatus = "closed"
)

// feedbackTransitions lists the statuses reachable from each status.
// Closed is terminal.
var feedbackTransitions = map[FeedbackStatus][]FeedbackStatus{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved:   {StatusOpen, StatusClosed},
	StatusClosed:     {},
}

// CanTransitionTo reports whether a ticket in status s may move to next.
// Re-applying the current status is allowed so comments can be updated.
func (s FeedbackStatus) CanTransitionTo(next FeedbackStatus) bool {
	if s == next {
		return s != StatusClosed
	}
	for _, allowed := range feedbackTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Feedback is a user-submitted ticket
type Feedback struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId,omitempty"`
	UserName      string           `json:"userName,omitempty"`
	Type          FeedbackType     `json:"type"`
	Category      FeedbackCategory `json:"category"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	GameID        string           `json:"gameId,omitempty"`
	QuestionID    string           `json:"questionId,omitempty"`
	LevelID       string           `json:"levelId,omitempty"`
	Priority      FeedbackPriority `json:"priority"`
	Status        FeedbackStatus   `json:"status"`
	AdminComments string           `json:"adminComments,omitempty"`
	SubmittedAt   time.Time        `json:"submittedAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	ResolvedAt    *time.Time       `json:"resolvedAt,omitempty"`
	ResolvedBy    string           `json:"resolvedBy,omitempty"`
}

// FeedbackForm is the input for submitting feedback
type FeedbackForm struct {
	Type        FeedbackType     `json:"type" validate:"oneof=bug suggestion question_issue general"`
	Category    FeedbackCategory `json:"category" validate:"oneof=incorrect_answer spelling_mistake technical_issue content_issue other"`
	Title       string           `json:"title" validate:"required,notblank,max=200"`
	Description string           `json:"description" validate:"required,notblank,max=5000"`
	GameID      string           `json:"gameId,omitempty"`
	QuestionID  string           `json:"questionId,omitempty"`
	LevelID     string           `json:"levelId,omitempty"`
	Priority    FeedbackPriority `json:"priority" validate:"oneof=low medium high critical"`
}

// FeedbackStatusUpdate changes a ticket's status
type FeedbackStatusUpdate struct {
	Status        FeedbackStatus `json:"status" validate:"oneof=open in_progress resolved closed"`
	AdminComments *string        `json:"adminComments,omitempty"`
}

// FeedbackFilter narrows a feedback listing. Zero values match everything.
type FeedbackFilter struct {
	Type       FeedbackType     `json:"type,omitempty"`
	Category   FeedbackCategory `json:"category,omitempty"`
	Priority   FeedbackPriority `json:"priority,omitempty"`
	Status     FeedbackStatus   `json:"status,omitempty"`
	DateFrom   *time.Time       `json:"dateFrom,omitempty"`
	DateTo     *time.Time       `json:"dateTo,omitempty"`
	SearchText string           `json:"searchText,omitempty"`
}

// FeedbackStats summarizes all tickets
type FeedbackStats struct {
	TotalFeedback     int                      `json:"totalFeedback"`
	OpenIssues        int                      `json:"openIssues"`
	ResolvedIssues    int                      `json:"resolvedIssues"`
	CriticalIssues    int                      `json:"criticalIssues"`
	TypeBreakdown     map[FeedbackType]int     `json:"typeBreakdown"`
	CategoryBreakdown map[FeedbackCategory]int `json:"categoryBreakdown"`
	PriorityBreakdown map[FeedbackPriority]int `json:"priorityBreakdown"`
}
