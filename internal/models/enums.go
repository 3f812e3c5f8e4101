package models

// Subject is a curriculum area a question or level belongs to
type Subject string

const (
	SubjectMath             Subject = "Math"
	SubjectSpelling         Subject = "Spelling"
	SubjectGeneralKnowledge Subject = "General Knowledge"
)

// Subjects lists every subject in display order
var Subjects = []Subject{SubjectMath, SubjectSpelling, SubjectGeneralKnowledge}

// Valid reports whether s is a known subject
func (s Subject) Valid() bool {
	switch s {
	case SubjectMath, SubjectSpelling, SubjectGeneralKnowledge:
		return true
	}
	return false
}

// Difficulty grades how hard a question or level is
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists every difficulty from easiest to hardest
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Role is the access level of an account
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may manage content and read analytics
func (r Role) IsStaff() bool {
	return r == RoleTeacher || r == RoleAdmin
}

const (
	MinGrade = 1
	MaxGrade = 5
)
