package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/validation"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultTimeSeriesDays   = 30
	maxTimeSeriesDays       = 365

	chartColor = "#667eea"
)

// AnalyticsService aggregates the play history for the teacher dashboards.
// It keeps no state of its own.
type AnalyticsService struct {
	resultRepo *repository.ResultRepository
	now        func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(resultRepo *repository.ResultRepository) *AnalyticsService {
	return &AnalyticsService{
		resultRepo: resultRepo,
		now:        time.Now,
	}
}

// resolve fills DateFrom from TimeRange when no explicit start was given
func (s *AnalyticsService) resolve(filter models.AnalyticsFilter) models.AnalyticsFilter {
	if filter.DateFrom == nil && filter.TimeRange != "" {
		filter.DateFrom = filter.TimeRange.Since(s.now().UTC())
	}
	return filter
}

func (s *AnalyticsService) load(ctx context.Context, filter models.AnalyticsFilter) ([]models.GameResult, error) {
	filter = s.resolve(filter)
	return s.resultRepo.List(ctx, models.ProgressFilter{
		Grade:    filter.Grade,
		Subject:  filter.Subject,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	})
}

// GetAnalyticsData computes the overview totals
func (s *AnalyticsService) GetAnalyticsData(ctx context.Context, filter models.AnalyticsFilter) (*models.AnalyticsData, error) {
	filter = s.resolve(filter)
	results, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	data := &models.AnalyticsData{
		TotalGames:    len(results),
		TotalStudents: countStudents(results),
		DateRange: models.DateRange{
			From: now.AddDate(0, 0, -30),
			To:   now,
		},
	}
	if filter.DateFrom != nil {
		data.DateRange.From = filter.DateFrom.UTC()
	}
	if filter.DateTo != nil {
		data.DateRange.To = filter.DateTo.UTC()
	}

	agg := aggregate(results)
	data.AverageScore = round1(agg.averageScore())
	data.CompletionRate = round1(agg.completionRate())
	data.TimeSpent = int(agg.durationSum/60.0 + 0.5)
	return data, nil
}

// GetPerformanceMetrics reports one entry per grade and subject, best average first
func (s *AnalyticsService) GetPerformanceMetrics(ctx context.Context, filter models.AnalyticsFilter) ([]models.PerformanceMetrics, error) {
	results, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	type cohort struct {
		grade   int
		subject models.Subject
		results []models.GameResult
	}
	var order []string
	cohorts := map[string]*cohort{}
	for _, r := range results {
		key := strconv.Itoa(r.Grade) + "-" + string(r.Subject)
		c, ok := cohorts[key]
		if !ok {
			c = &cohort{grade: r.Grade, subject: r.Subject}
			cohorts[key] = c
			order = append(order, key)
		}
		c.results = append(c.results, r)
	}

	metrics := make([]models.PerformanceMetrics, 0, len(order))
	for _, key := range order {
		c := cohorts[key]
		agg := aggregate(c.results)
		metrics = append(metrics, models.PerformanceMetrics{
			Grade:          c.grade,
			Subject:        c.subject,
			AverageScore:   round1(agg.averageScore()),
			TotalGames:     len(c.results),
			CompletionRate: round1(agg.completionRate()),
			Improvement:    round1(improvement(c.results)),
		})
	}
	sort.SliceStable(metrics, func(i, j int) bool { return metrics[i].AverageScore > metrics[j].AverageScore })
	return metrics, nil
}

// GetLeaderboard ranks students by their best score. Students tied on score
// keep the order in which they first appear in the history, newest first.
func (s *AnalyticsService) GetLeaderboard(ctx context.Context, subject models.Subject, grade, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = min(limit, maxLeaderboardLimit)

	results, err := s.load(ctx, models.AnalyticsFilter{Subject: subject, Grade: grade})
	if err != nil {
		return nil, err
	}

	entries := leaderboard(results)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// leaderboard groups results per student and sorts by best score, unranked
func leaderboard(results []models.GameResult) []models.LeaderboardEntry {
	var order []string
	byStudent := map[string]*models.LeaderboardEntry{}
	scoreSums := map[string]int{}

	for _, r := range results {
		key := leaderboardKey(r)
		entry, ok := byStudent[key]
		if !ok {
			name := r.StudentName
			if name == "" {
				name = anonymousStudentName
			}
			entry = &models.LeaderboardEntry{
				StudentName: name,
				StudentID:   r.StudentID,
				Score:       r.Score,
				LastPlayed:  r.CompletedAt,
				Grade:       r.Grade,
				Subject:     r.Subject,
			}
			byStudent[key] = entry
			order = append(order, key)
		}
		entry.TotalGames++
		entry.Stars += r.Stars
		entry.Score = max(entry.Score, r.Score)
		if r.CompletedAt.After(entry.LastPlayed) {
			entry.LastPlayed = r.CompletedAt
		}
		scoreSums[key] += r.Score
	}

	entries := make([]models.LeaderboardEntry, 0, len(order))
	for _, key := range order {
		entry := byStudent[key]
		entry.AverageScore = round1(float64(scoreSums[key]) / float64(entry.TotalGames))
		entries = append(entries, *entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

func leaderboardKey(r models.GameResult) string {
	switch {
	case r.StudentID != "":
		return r.StudentID
	case r.StudentName != "":
		return r.StudentName
	default:
		return "anonymous"
	}
}

// GetChartData builds a single per-subject dataset of the requested measure
func (s *AnalyticsService) GetChartData(ctx context.Context, chartType models.ChartType, filter models.AnalyticsFilter) (*models.ChartData, error) {
	var label string
	switch chartType {
	case models.ChartScore:
		label = "Average Score"
	case models.ChartCompletion:
		label = "Completion Rate (%)"
	case models.ChartTime:
		label = "Average Time (min)"
	default:
		return nil, validation.Errors{"type": "must be one of: score, completion, time"}
	}

	results, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	var labels []string
	groups := map[models.Subject][]models.GameResult{}
	for _, r := range results {
		if _, ok := groups[r.Subject]; !ok {
			labels = append(labels, string(r.Subject))
		}
		groups[r.Subject] = append(groups[r.Subject], r)
	}

	data := make([]float64, 0, len(labels))
	for _, l := range labels {
		agg := aggregate(groups[models.Subject(l)])
		var v float64
		switch chartType {
		case models.ChartScore:
			v = agg.averageScore()
		case models.ChartCompletion:
			v = agg.completionRate()
		case models.ChartTime:
			v = agg.durationSum / float64(agg.games) / 60
		}
		data = append(data, round1(v))
	}

	if labels == nil {
		labels = []string{}
	}
	return &models.ChartData{
		Labels: labels,
		Datasets: []models.ChartDataset{{
			Label:           label,
			Data:            data,
			Color:           chartColor,
			BackgroundColor: chartColor + "20",
		}},
	}, nil
}

// GetInsights derives the dashboard insights from the whole history
func (s *AnalyticsService) GetInsights(ctx context.Context) (*models.AnalyticsInsights, error) {
	results, err := s.load(ctx, models.AnalyticsFilter{})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &models.AnalyticsInsights{
			TopPerformingSubject: models.SubjectMath,
			MostImprovedGrade:    3,
			PeakActivityTime:     "2:00 PM - 4:00 PM",
			EngagementTrend:      models.TrendIncreasing,
			Recommendations: []string{
				"Focus on Math content as it shows highest engagement",
				"Consider adding more Grade 3 level content",
				"Peak activity time is 2-4 PM, schedule important content then",
			},
		}, nil
	}

	subjects := groupBySubject(results)
	top, weakest := subjects[0], subjects[0]
	for _, g := range subjects[1:] {
		if g.averageScore() > top.averageScore() {
			top = g
		}
		if g.averageScore() < weakest.averageScore() {
			weakest = g
		}
	}

	grades := groupByGrade(results)
	best := grades[0]
	for _, g := range grades[1:] {
		if g.averageScore() > best.averageScore() {
			best = g
		}
	}

	peakStart := peakActivityHour(results)
	trend := s.engagementTrend(results)

	insights := &models.AnalyticsInsights{
		TopPerformingSubject: top.subject,
		MostImprovedGrade:    best.grade,
		PeakActivityTime:     fmt.Sprintf("%s - %s", clockLabel(peakStart), clockLabel(peakStart+2)),
		EngagementTrend:      trend,
	}

	insights.Recommendations = append(insights.Recommendations,
		fmt.Sprintf("Focus on %s content as it shows highest engagement", top.subject))
	if weakest.subject != top.subject {
		insights.Recommendations = append(insights.Recommendations,
			fmt.Sprintf("Add more practice for %s, the lowest scoring subject", weakest.subject))
	}
	insights.Recommendations = append(insights.Recommendations,
		fmt.Sprintf("Consider adding more Grade %d level content", leastPlayedGrade(results)),
		fmt.Sprintf("Peak activity time is %s, schedule important content then", insights.PeakActivityTime))
	if trend == models.TrendDecreasing {
		insights.Recommendations = append(insights.Recommendations,
			"Engagement dropped compared to the previous week, consider enabling game reminders")
	}
	return insights, nil
}

// engagementTrend compares games played in the last 7 days with the 7 days before
func (s *AnalyticsService) engagementTrend(results []models.GameResult) models.EngagementTrend {
	now := s.now().UTC()
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	recent, previous := 0, 0
	for _, r := range results {
		switch {
		case r.CompletedAt.After(weekAgo) && !r.CompletedAt.After(now):
			recent++
		case r.CompletedAt.After(twoWeeksAgo) && !r.CompletedAt.After(weekAgo):
			previous++
		}
	}

	// a swing within 10% counts as stable
	switch {
	case recent*10 > previous*11:
		return models.TrendIncreasing
	case recent*10 < previous*9:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

// GetTimeSeries reports one point per UTC day for the last days days, oldest first
func (s *AnalyticsService) GetTimeSeries(ctx context.Context, days int, filter models.AnalyticsFilter) ([]models.TimeSeriesPoint, error) {
	if days <= 0 {
		days = defaultTimeSeriesDays
	}
	days = min(days, maxTimeSeriesDays)

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	filter.TimeRange = ""
	filter.DateFrom = &start
	filter.DateTo = nil
	results, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	byDay := map[string][]models.GameResult{}
	for _, r := range results {
		day := r.CompletedAt.UTC().Format(time.DateOnly)
		byDay[day] = append(byDay[day], r)
	}

	points := make([]models.TimeSeriesPoint, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		agg := aggregate(byDay[key])
		points = append(points, models.TimeSeriesPoint{
			Date:           key,
			GamesPlayed:    agg.games,
			AverageScore:   round1(agg.averageScore()),
			CompletionRate: round1(agg.completionRate()),
		})
	}
	return points, nil
}

// GetSubjectBreakdown reports per-subject totals in display order
func (s *AnalyticsService) GetSubjectBreakdown(ctx context.Context, filter models.AnalyticsFilter) ([]models.SubjectBreakdown, error) {
	results, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	breakdown := []models.SubjectBreakdown{}
	for _, g := range groupBySubject(results) {
		breakdown = append(breakdown, models.SubjectBreakdown{
			Subject:        g.subject,
			TotalGames:     g.games,
			AverageScore:   round1(g.averageScore()),
			CompletionRate: round1(g.completionRate()),
			Improvement:    round1(improvement(g.results)),
		})
	}
	return breakdown, nil
}

// GetGradeBreakdown reports per-grade totals, lowest grade first
func (s *AnalyticsService) GetGradeBreakdown(ctx context.Context, filter models.AnalyticsFilter) ([]models.GradeBreakdown, error) {
	results, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	breakdown := []models.GradeBreakdown{}
	for _, g := range groupByGrade(results) {
		entry := models.GradeBreakdown{
			Grade:         g.grade,
			TotalStudents: countStudents(g.results),
			TotalGames:    g.games,
			AverageScore:  round1(g.averageScore()),
		}

		var bestAvg float64
		for i, e := range leaderboard(g.results) {
			if i == 0 || e.AverageScore > bestAvg {
				bestAvg = e.AverageScore
				entry.TopPerformer = e.StudentName
			}
		}
		breakdown = append(breakdown, entry)
	}
	return breakdown, nil
}

// resultGroup accumulates sums over a set of results
type resultGroup struct {
	subject     models.Subject
	grade       int
	results     []models.GameResult
	games       int
	scoreSum    int
	completed   int
	durationSum float64
}

func (g *resultGroup) add(r models.GameResult) {
	g.results = append(g.results, r)
	g.games++
	g.scoreSum += r.Score
	g.durationSum += float64(r.Duration)
	if r.Score > 0 {
		g.completed++
	}
}

func (g *resultGroup) averageScore() float64 {
	if g.games == 0 {
		return 0
	}
	return float64(g.scoreSum) / float64(g.games)
}

// completionRate is the percentage of games with at least one correct answer
func (g *resultGroup) completionRate() float64 {
	if g.games == 0 {
		return 0
	}
	return float64(g.completed) / float64(g.games) * 100
}

func aggregate(results []models.GameResult) *resultGroup {
	g := &resultGroup{}
	for _, r := range results {
		g.add(r)
	}
	return g
}

// groupBySubject groups results in subject display order, skipping empty subjects
func groupBySubject(results []models.GameResult) []*resultGroup {
	bySubject := map[models.Subject]*resultGroup{}
	var extra []models.Subject
	for _, r := range results {
		g, ok := bySubject[r.Subject]
		if !ok {
			g = &resultGroup{subject: r.Subject}
			bySubject[r.Subject] = g
			if !r.Subject.Valid() {
				extra = append(extra, r.Subject)
			}
		}
		g.add(r)
	}

	var groups []*resultGroup
	for _, subject := range append(append([]models.Subject{}, models.Subjects...), extra...) {
		if g, ok := bySubject[subject]; ok {
			groups = append(groups, g)
		}
	}
	return groups
}

// groupByGrade groups results by grade, lowest first
func groupByGrade(results []models.GameResult) []*resultGroup {
	byGrade := map[int]*resultGroup{}
	for _, r := range results {
		g, ok := byGrade[r.Grade]
		if !ok {
			g = &resultGroup{grade: r.Grade}
			byGrade[r.Grade] = g
		}
		g.add(r)
	}

	groups := make([]*resultGroup, 0, len(byGrade))
	for _, g := range byGrade {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].grade < groups[j].grade })
	return groups
}

// improvement is the mean score percentage of the newer half of results minus
// that of the older half, in percentage points
func improvement(results []models.GameResult) float64 {
	if len(results) < 2 {
		return 0
	}

	ordered := make([]models.GameResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CompletedAt.Before(ordered[j].CompletedAt) })

	half := len(ordered) / 2
	return meanPercentage(ordered[half:]) - meanPercentage(ordered[:half])
}

func meanPercentage(results []models.GameResult) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Percentage()
	}
	return sum / float64(len(results))
}

func countStudents(results []models.GameResult) int {
	students := map[string]bool{}
	for _, r := range results {
		students[studentKey(r.StudentID)] = true
	}
	return len(students)
}

// peakActivityHour returns the UTC hour starting the busiest two-hour window.
// Windows wrap around midnight; the earliest hour wins a tie.
func peakActivityHour(results []models.GameResult) int {
	var perHour [24]int
	for _, r := range results {
		perHour[r.CompletedAt.UTC().Hour()]++
	}

	bestHour, bestCount := 0, -1
	for h := 0; h < 24; h++ {
		if n := perHour[h] + perHour[(h+1)%24]; n > bestCount {
			bestHour, bestCount = h, n
		}
	}
	return bestHour
}

// clockLabel renders an hour of the day as "2:00 PM"
func clockLabel(hour int) string {
	return time.Date(2000, 1, 1, hour%24, 0, 0, 0, time.UTC).Format("3:04 PM")
}

// leastPlayedGrade returns the grade with the fewest games, lowest grade on a tie
func leastPlayedGrade(results []models.GameResult) int {
	var counts [models.MaxGrade + 1]int
	for _, r := range results {
		if r.Grade >= models.MinGrade && r.Grade <= models.MaxGrade {
			counts[r.Grade]++
		}
	}

	least := models.MinGrade
	for g := models.MinGrade + 1; g <= models.MaxGrade; g++ {
		if counts[g] < counts[least] {
			least = g
		}
	}
	return least
}
