package models

import "time"

// TimeRange is a relative window ending now
type TimeRange string

const (
	TimeRangeWeek    TimeRange = "week"
	TimeRangeMonth   TimeRange = "month"
	TimeRangeQuarter TimeRange = "quarter"
	TimeRangeYear    TimeRange = "year"
	TimeRangeAll     TimeRange = "all"
)

// Since returns the start of the range relative to now, or nil for "all" and unknown values
func (r TimeRange) Since(now time.Time) *time.Time {
	var from time.Time
	switch r {
	case TimeRangeWeek:
		from = now.AddDate(0, 0, -7)
	case TimeRangeMonth:
		from = now.AddDate(0, -1, 0)
	case TimeRangeQuarter:
		from = now.AddDate(0, -3, 0)
	case TimeRangeYear:
		from = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &from
}

// AnalyticsFilter narrows analytics queries. Zero values match everything.
type AnalyticsFilter struct {
	Grade     int        `json:"grade,omitempty"`
	Subject   Subject    `json:"subject,omitempty"`
	DateFrom  *time.Time `json:"dateFrom,omitempty"`
	DateTo    *time.Time `json:"dateTo,omitempty"`
	TimeRange TimeRange  `json:"timeRange,omitempty"`
}

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AnalyticsData is the overview block of the analytics screen
type AnalyticsData struct {
	TotalGames     int       `json:"totalGames"`
	TotalStudents  int       `json:"totalStudents"`
	AverageScore   float64   `json:"averageScore"`
	CompletionRate float64   `json:"completionRate"`
	TimeSpent      int       `json:"timeSpent"`
	DateRange      DateRange `json:"dateRange"`
}

// PerformanceMetrics describes one grade/subject cohort.
// Improvement is in percentage points.
type PerformanceMetrics struct {
	Grade          int     `json:"grade"`
	Subject        Subject `json:"subject"`
	AverageScore   float64 `json:"averageScore"`
	TotalGames     int     `json:"totalGames"`
	CompletionRate float64 `json:"completionRate"`
	Improvement    float64 `json:"improvement"`
}

type LeaderboardEntry struct {
	Rank         int       `json:"rank"`
	StudentName  string    `json:"studentName"`
	StudentID    string    `json:"studentId,omitempty"`
	Score        int       `json:"score"`
	TotalGames   int       `json:"totalGames"`
	AverageScore float64   `json:"averageScore"`
	Stars        int       `json:"stars"`
	LastPlayed   time.Time `json:"lastPlayed"`
	Grade        int       `json:"grade"`
	Subject      Subject   `json:"subject"`
}

type ChartType string

const (
	ChartScore      ChartType = "score"
	ChartCompletion ChartType = "completion"
	ChartTime       ChartType = "time"
)

type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	Color           string    `json:"color"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
}

type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

type SubjectBreakdown struct {
	Subject        Subject `json:"subject"`
	TotalGames     int     `json:"totalGames"`
	AverageScore   float64 `json:"averageScore"`
	CompletionRate float64 `json:"completionRate"`
	Improvement    float64 `json:"improvement"`
}

type GradeBreakdown struct {
	Grade         int     `json:"grade"`
	TotalStudents int     `json:"totalStudents"`
	TotalGames    int     `json:"totalGames"`
	AverageScore  float64 `json:"averageScore"`
	TopPerformer  string  `json:"topPerformer"`
}

type TimeSeriesPoint struct {
	Date           string  `json:"date"`
	GamesPlayed    int     `json:"gamesPlayed"`
	AverageScore   float64 `json:"averageScore"`
	CompletionRate float64 `json:"completionRate"`
}

type EngagementTrend string

const (
	TrendIncreasing EngagementTrend = "increasing"
	TrendDecreasing EngagementTrend = "decreasing"
	TrendStable     EngagementTrend = "stable"
)

type AnalyticsInsights struct {
	TopPerformingSubject Subject         `json:"topPerformingSubject"`
	MostImprovedGrade    int             `json:"mostImprovedGrade"`
	PeakActivityTime     string          `json:"peakActivityTime"`
	EngagementTrend      EngagementTrend `json:"engagementTrend"`
	Recommendations      []string        `json:"recommendations"`
}
