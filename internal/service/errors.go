package service

import "errors"

var (
	ErrQuestionNotFound    = errors.New("question not found")
	ErrLevelNotFound       = errors.New("level not found")
	ErrFeedbackNotFound    = errors.New("feedback not found")
	ErrGameSessionNotFound = errors.New("game session not found")
	ErrUserNotFound        = errors.New("user not found")

	ErrQuestionInUse           = errors.New("question is used by a level")
	ErrUnknownQuestions        = errors.New("level references unknown questions")
	ErrLevelHasNoQuestions     = errors.New("level has no playable questions")
	ErrQuestionNotInSession    = errors.New("question is not part of this session")
	ErrAlreadyAnswered         = errors.New("question already answered")
	ErrInvalidStatusTransition = errors.New("invalid feedback status transition")

	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)
