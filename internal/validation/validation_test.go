package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/models"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid email", email: "test@example.com"},
		{name: "valid email with subdomain", email: "user@mail.example.com"},
		{name: "valid email with plus", email: "user+tag@example.com"},
		{name: "missing @", email: "testexample.com", wantErr: true},
		{name: "missing domain", email: "test@", wantErr: true},
		{name: "missing local part", email: "@example.com", wantErr: true},
		{name: "empty string", email: "", wantErr: true},
		{name: "spaces in email", email: "test @example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "Teacher123@"},
		{name: "exactly eight", password: "password"},
		{name: "too short", password: "short", wantErr: true},
		{name: "empty", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Jo"))
	assert.Error(t, ValidateName(" "))
	assert.Error(t, ValidateName("J"))
}

func TestStructQuestionForm(t *testing.T) {
	valid := models.QuestionForm{
		Prompt:        "What is 2 + 2?",
		Options:       []string{"3", "4"},
		CorrectAnswer: 1,
		Grade:         1,
		Subject:       models.SubjectMath,
		Difficulty:    models.DifficultyEasy,
	}
	require.NoError(t, Struct(valid))

	invalid := models.QuestionForm{
		Prompt:     "   ",
		Options:    []string{"only one"},
		Grade:      7,
		Subject:    "History",
		Difficulty: "Expert",
	}
	err := Struct(invalid)
	require.Error(t, err)

	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, "must not be blank", errs["prompt"])
	assert.Equal(t, "must contain at least 2 items", errs["options"])
	assert.Equal(t, "must be at most 5", errs["grade"])
	assert.Contains(t, errs["subject"], "Math")
	assert.Contains(t, errs["difficulty"], "Easy")
}

func TestStructBlankOption(t *testing.T) {
	form := models.QuestionForm{
		Prompt:     "Spell CAT",
		Options:    []string{"CAT", " "},
		Grade:      1,
		Subject:    models.SubjectSpelling,
		Difficulty: models.DifficultyEasy,
	}

	var errs Errors
	require.True(t, errors.As(Struct(form), &errs))
	assert.Equal(t, "must not be blank", errs["options[1]"])
}

func TestStructLevelFormDuplicates(t *testing.T) {
	form := models.LevelForm{
		Title:       "Addition",
		Grade:       1,
		Subject:     models.SubjectMath,
		Difficulty:  models.DifficultyEasy,
		PassScore:   1,
		QuestionIDs: []string{"a", "a"},
	}

	var errs Errors
	require.True(t, errors.As(Struct(form), &errs))
	assert.Equal(t, "must not contain duplicates", errs["questionIds"])
}

func TestErrorsMessageIsSorted(t *testing.T) {
	errs := Errors{"title": "is required", "grade": "must be at least 1"}
	assert.Equal(t, "validation failed: grade: must be at least 1; title: is required", errs.Error())
	assert.Nil(t, Errors{}.OrNil())
}
