package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"edugame/internal/models"
	"edugame/internal/validation"
)

const dateLayout = "2006-01-02"

// queryParams collects typed query values and the errors met while parsing them
type queryParams struct {
	values map[string][]string
	errs   validation.Errors
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query(), errs: validation.Errors{}}
}

func (q *queryParams) str(key string) string {
	if v, ok := q.values[key]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q *queryParams) integer(key string) int {
	raw := q.str(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.errs.Add(key, "must be a whole number")
		return 0
	}
	return n
}

func (q *queryParams) grade(key string) int {
	grade := q.integer(key)
	if grade != 0 && (grade < models.MinGrade || grade > models.MaxGrade) {
		q.errs.Add(key, "must be between 1 and 5")
	}
	return grade
}

func (q *queryParams) subject(key string) models.Subject {
	subject := models.Subject(q.str(key))
	if subject != "" && !subject.Valid() {
		q.errs.Add(key, "must be one of: Math, Spelling, General Knowledge")
	}
	return subject
}

func (q *queryParams) difficulty(key string) models.Difficulty {
	difficulty := models.Difficulty(q.str(key))
	if difficulty != "" && !difficulty.Valid() {
		q.errs.Add(key, "must be one of: Easy, Medium, Hard")
	}
	return difficulty
}

// date accepts RFC 3339 timestamps and plain dates. endOfDay moves a plain
// date to the last instant of that day so date ranges are inclusive.
func (q *queryParams) date(key string, endOfDay bool) *time.Time {
	raw := q.str(key)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		q.errs.Add(key, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		return nil
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}

func (q *queryParams) err() error {
	return q.errs.OrNil()
}

func parseAnalyticsFilter(r *http.Request) (models.AnalyticsFilter, error) {
	q := newQueryParams(r)
	filter := models.AnalyticsFilter{
		Grade:     q.grade("grade"),
		Subject:   q.subject("subject"),
		DateFrom:  q.date("dateFrom", false),
		DateTo:    q.date("dateTo", true),
		TimeRange: models.TimeRange(q.str("timeRange")),
	}
	switch filter.TimeRange {
	case "", models.TimeRangeWeek, models.TimeRangeMonth, models.TimeRangeQuarter, models.TimeRangeYear, models.TimeRangeAll:
	default:
		q.errs.Add("timeRange", "must be one of: week, month, quarter, year, all")
	}
	return filter, q.err()
}

func parseProgressFilter(r *http.Request) (models.ProgressFilter, error) {
	q := newQueryParams(r)
	filter := models.ProgressFilter{
		Grade:       q.grade("grade"),
		Subject:     q.subject("subject"),
		StudentID:   q.str("studentId"),
		StudentName: q.str("studentName"),
		DateFrom:    q.date("dateFrom", false),
		DateTo:      q.date("dateTo", true),
	}
	return filter, q.err()
}
