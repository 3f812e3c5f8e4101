package models

import "time"

type NotificationSettings struct {
	GameReminders     bool `json:"gameReminders"`
	AchievementAlerts bool `json:"achievementAlerts"`
	ProgressUpdates   bool `json:"progressUpdates"`
}

type AccessibilitySettings struct {
	LargeText     bool `json:"largeText"`
	HighContrast  bool `json:"highContrast"`
	ReducedMotion bool `json:"reducedMotion"`
}

type PrivacySettings struct {
	DataCollection bool `json:"dataCollection"`
	Analytics      bool `json:"analytics"`
	CrashReports   bool `json:"crashReports"`
}

// AppSettings holds a user's app preferences
type AppSettings struct {
	Theme         string                `json:"theme" validate:"oneof=light dark auto"`
	Language      string                `json:"language" validate:"oneof=en si ta"`
	SoundEnabled  bool                  `json:"soundEnabled"`
	MusicEnabled  bool                  `json:"musicEnabled"`
	SoundVolume   int                   `json:"soundVolume" validate:"min=0,max=100"`
	MusicVolume   int                   `json:"musicVolume" validate:"min=0,max=100"`
	Notifications NotificationSettings  `json:"notifications"`
	Accessibility AccessibilitySettings `json:"accessibility"`
	Privacy       PrivacySettings       `json:"privacy"`
	LastUpdated   time.Time             `json:"lastUpdated"`
}

// DefaultSettings returns the settings a new user starts with
func DefaultSettings(now time.Time) AppSettings {
	return AppSettings{
		Theme:        "light",
		Language:     "en",
		SoundEnabled: true,
		MusicEnabled: true,
		SoundVolume:  80,
		MusicVolume:  60,
		Notifications: NotificationSettings{
			GameReminders:     true,
			AchievementAlerts: true,
			ProgressUpdates:   true,
		},
		Privacy: PrivacySettings{
			DataCollection: true,
			Analytics:      true,
			CrashReports:   true,
		},
		LastUpdated: now,
	}
}

// AppSettingsPatch is a shallow partial update: a non-nil group replaces the whole group
type AppSettingsPatch struct {
	Theme         *string                `json:"theme,omitempty"`
	Language      *string                `json:"language,omitempty"`
	SoundEnabled  *bool                  `json:"soundEnabled,omitempty"`
	MusicEnabled  *bool                  `json:"musicEnabled,omitempty"`
	SoundVolume   *int                   `json:"soundVolume,omitempty"`
	MusicVolume   *int                   `json:"musicVolume,omitempty"`
	Notifications *NotificationSettings  `json:"notifications,omitempty"`
	Accessibility *AccessibilitySettings `json:"accessibility,omitempty"`
	Privacy       *PrivacySettings       `json:"privacy,omitempty"`
}

// Apply merges the patch into s
func (p AppSettingsPatch) Apply(s *AppSettings) {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.SoundEnabled != nil {
		s.SoundEnabled = *p.SoundEnabled
	}
	if p.MusicEnabled != nil {
		s.MusicEnabled = *p.MusicEnabled
	}
	if p.SoundVolume != nil {
		s.SoundVolume = *p.SoundVolume
	}
	if p.MusicVolume != nil {
		s.MusicVolume = *p.MusicVolume
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.Accessibility != nil {
		s.Accessibility = *p.Accessibility
	}
	if p.Privacy != nil {
		s.Privacy = *p.Privacy
	}
}

type LanguageOption struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"nativeName"`
}

type ThemeOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Preview     string `json:"preview"`
}

var LanguageOptions = []LanguageOption{
	{Code: "en", Name: "English", NativeName: "English"},
	{Code: "si", Name: "Sinhala", NativeName: "සිංහල"},
	{Code: "ta", Name: "Tamil", NativeName: "தமிழ்"},
}

var ThemeOptions = []ThemeOption{
	{ID: "light", Name: "Light Mode", Description: "Clean and bright interface", Preview: "#FFFFFF"},
	{ID: "dark", Name: "Dark Mode", Description: "Easy on the eyes in low light", Preview: "#1A1A1A"},
	{ID: "auto", Name: "Auto", Description: "Follows system settings", Preview: "#667eea"},
}
