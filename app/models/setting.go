package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a single persisted platform setting row.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings is the in-memory view of the platform settings. The webhook
// ingestion endpoints and the job dispatcher read it on every request/tick.
type AppSettings struct {
	SiteTitle                   string `json:"site_title" validate:"required,min=1,max=255"`
	RazorpayWebhookEnabled      bool   `json:"razorpay_webhook_enabled"`
	DelhiveryWebhookEnabled     bool   `json:"delhivery_webhook_enabled"`
	JobQueueWorkerCount         int    `json:"job_queue_worker_count" validate:"min=1,max=64"`
	JobMaxAttempts              int    `json:"job_max_attempts" validate:"min=1,max=10"`
	JobStalenessMinutes         int    `json:"job_staleness_minutes" validate:"min=1,max=1440"`
	TrackingSyncIntervalMinutes int    `json:"tracking_sync_interval_minutes" validate:"min=1,max=1440"`
	mu                          sync.RWMutex
}

var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

// GetAppSettings returns the current application settings.
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return appSettings
}

// SetAppSettings replaces the in-memory settings without touching the
// database. Used by tests that need a specific configuration.
func SetAppSettings(settings *AppSettings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	appSettings = settings
}

// LoadSettings loads settings from database into memory.
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Defaults apply for any key missing from the DB.
	appSettings = &AppSettings{
		SiteTitle:                   "CartFlow",
		RazorpayWebhookEnabled:      true,
		DelhiveryWebhookEnabled:     true,
		JobQueueWorkerCount:         5,
		JobMaxAttempts:              DefaultJobMaxAttempts,
		JobStalenessMinutes:         10,
		TrackingSyncIntervalMinutes: 30,
	}

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "site_title":
			appSettings.SiteTitle = setting.Value
		case "razorpay_webhook_enabled":
			appSettings.RazorpayWebhookEnabled = setting.Value == "true"
		case "delhivery_webhook_enabled":
			appSettings.DelhiveryWebhookEnabled = setting.Value == "true"
		case "job_queue_worker_count":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				appSettings.JobQueueWorkerCount = v
			}
		case "job_max_attempts":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				appSettings.JobMaxAttempts = v
			}
		case "job_staleness_minutes":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				appSettings.JobStalenessMinutes = v
			}
		case "tracking_sync_interval_minutes":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				appSettings.TrackingSyncIntervalMinutes = v
			}
		}
	}

	return nil
}

// SaveSettings validates and persists settings, then swaps the cached copy.
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMap := map[string]string{
		"site_title":                     settings.SiteTitle,
		"razorpay_webhook_enabled":       fmt.Sprintf("%t", settings.RazorpayWebhookEnabled),
		"delhivery_webhook_enabled":      fmt.Sprintf("%t", settings.DelhiveryWebhookEnabled),
		"job_queue_worker_count":         strconv.Itoa(settings.JobQueueWorkerCount),
		"job_max_attempts":               strconv.Itoa(settings.JobMaxAttempts),
		"job_staleness_minutes":          strconv.Itoa(settings.JobStalenessMinutes),
		"tracking_sync_interval_minutes": strconv.Itoa(settings.TrackingSyncIntervalMinutes),
	}

	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				setting = Setting{
					Key:   key,
					Value: value,
					Type:  getSettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			setting.Value = value
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	appSettings = settings
	return nil
}

func getSettingType(key string) string {
	switch key {
	case "razorpay_webhook_enabled", "delhivery_webhook_enabled":
		return "boolean"
	case "job_queue_worker_count", "job_max_attempts", "job_staleness_minutes", "tracking_sync_interval_minutes":
		return "integer"
	default:
		return "string"
	}
}

// Validate validates the settings.
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// IsWebhookSourceEnabled reports whether ingestion for a provider is
// administratively enabled. Unknown sources are disabled.
func (s *AppSettings) IsWebhookSourceEnabled(source string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch source {
	case WebhookSourceRazorpay:
		return s.RazorpayWebhookEnabled
	case WebhookSourceDelhivery:
		return s.DelhiveryWebhookEnabled
	default:
		return false
	}
}

// GetJobQueueWorkerCount returns the configured dispatcher worker count.
func (s *AppSettings) GetJobQueueWorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.JobQueueWorkerCount
}

// GetJobMaxAttempts returns the retry ceiling applied to new jobs.
func (s *AppSettings) GetJobMaxAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.JobMaxAttempts
}

// GetJobStalenessMinutes returns the reaper threshold for stuck jobs.
func (s *AppSettings) GetJobStalenessMinutes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.JobStalenessMinutes
}

// GetTrackingSyncIntervalMinutes returns the carrier tracking poll interval.
func (s *AppSettings) GetTrackingSyncIntervalMinutes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TrackingSyncIntervalMinutes
}
