package models

import "time"

// MaxQuestionsPerSession caps how many questions a single game draws
const MaxQuestionsPerSession = 10

// GameQuestion is a question as presented inside a session
type GameQuestion struct {
	ID            string     `json:"id"`
	Prompt        string     `json:"prompt"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	Difficulty    Difficulty `json:"difficulty"`
}

// GameAnswer is one recorded answer
type GameAnswer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer int    `json:"selectedAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
	TimeSpent      int    `json:"timeSpent"`
}

// GameSession is one play-through of a level
type GameSession struct {
	ID             string         `json:"id"`
	StudentID      string         `json:"studentId,omitempty"`
	StudentName    string         `json:"studentName"`
	LevelID        string         `json:"levelId"`
	LevelTitle     string         `json:"levelTitle"`
	Grade          int            `json:"grade"`
	Subject        Subject        `json:"subject"`
	Questions      []GameQuestion `json:"questions"`
	Answers        []GameAnswer   `json:"answers"`
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	Stars          int            `json:"stars"`
	StartedAt      time.Time      `json:"startedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	Duration       int            `json:"duration"`
	IsOffline      bool           `json:"isOffline"`
}

// Question returns the session question with the given id
func (s *GameSession) Question(id string) (GameQuestion, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return GameQuestion{}, false
}

// HasAnswered reports whether questionID already has a recorded answer
func (s *GameSession) HasAnswered(questionID string) bool {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// CorrectCount returns the number of correct answers recorded so far
func (s *GameSession) CorrectCount() int {
	n := 0
	for _, a := range s.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

// Player identifies who is playing; an empty StudentID means anonymous play
type Player struct {
	StudentID   string `json:"studentId,omitempty"`
	StudentName string `json:"studentName,omitempty"`
}

// AnswerResult is returned after each submitted answer
type AnswerResult struct {
	IsCorrect     bool `json:"isCorrect"`
	CorrectAnswer int  `json:"correctAnswer"`
}

// GameResult is the immutable record of a completed session
type GameResult struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	StudentID      string    `json:"studentId,omitempty"`
	StudentName    string    `json:"studentName"`
	LevelID        string    `json:"levelId"`
	LevelTitle     string    `json:"levelTitle"`
	Grade          int       `json:"grade"`
	Subject        Subject   `json:"subject"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Stars          int       `json:"stars"`
	CompletedAt    time.Time `json:"completedAt"`
	Duration       int       `json:"duration"`
	IsOffline      bool      `json:"isOffline"`
}

// Percentage returns the score as a percentage of total questions
func (r GameResult) Percentage() float64 {
	if r.TotalQuestions == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.TotalQuestions) * 100
}

// Achievement is an unlockable badge shown on the progress screen
type Achievement struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
	Category    string     `json:"category"`
}

// StudentProgress aggregates a student's play history
type StudentProgress struct {
	StudentID        string        `json:"studentId,omitempty"`
	TotalGamesPlayed int           `json:"totalGamesPlayed"`
	TotalStars       int           `json:"totalStars"`
	AverageScore     float64       `json:"averageScore"`
	FavoriteSubject  Subject       `json:"favoriteSubject"`
	RecentGames      []GameResult  `json:"recentGames"`
	Achievements     []Achievement `json:"achievements"`
}

// ProgressFilter narrows the results listing. Zero values match everything.
type ProgressFilter struct {
	Grade       int        `json:"grade,omitempty"`
	Subject     Subject    `json:"subject,omitempty"`
	StudentID   string     `json:"studentId,omitempty"`
	StudentName string     `json:"studentName,omitempty"`
	DateFrom    *time.Time `json:"dateFrom,omitempty"`
	DateTo      *time.Time `json:"dateTo,omitempty"`
}

// ProgressStats summarizes all play for teachers
type ProgressStats struct {
	TotalStudents    int             `json:"totalStudents"`
	TotalGames       int             `json:"totalGames"`
	AverageScore     float64         `json:"averageScore"`
	TopPerformers    []GameResult    `json:"topPerformers"`
	SubjectBreakdown map[Subject]int `json:"subjectBreakdown"`
	GradeBreakdown   map[int]int     `json:"gradeBreakdown"`
}
