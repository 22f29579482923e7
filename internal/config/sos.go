package config

import (
	"time"
)

type SOSConfig struct {
	// WebBaseURL is the public web viewer; tracking links are
	// <WebBaseURL>/session/<id>?token=<accessToken>.
	WebBaseURL string `yaml:"web_base_url"`

	// TokenReuseWindow: tokens younger than this are reused instead of
	// rotated, so links shared mid-broadcast stay valid.
	TokenReuseWindow time.Duration `yaml:"token_reuse_window"`

	TrackingDistanceMeters float64       `yaml:"tracking_distance_meters"`
	TrackingInterval       time.Duration `yaml:"tracking_interval"`
	BackgroundTaskID       string        `yaml:"background_task_id"`

	DispatchInterval  time.Duration `yaml:"dispatch_interval"`
	DispatchBatchSize int           `yaml:"dispatch_batch_size"`
}

func loadSOSConfig() *SOSConfig {
	return &SOSConfig{
		WebBaseURL:             getEnv("SOS_WEB_BASE_URL", "https://readyaid.app"),
		TokenReuseWindow:       getEnvAsDuration("SOS_TOKEN_TTL", 12*time.Hour),
		TrackingDistanceMeters: getEnvAsFloat64("SOS_TRACKING_DISTANCE_METERS", 7),
		TrackingInterval:       getEnvAsDuration("SOS_TRACKING_INTERVAL", 3*time.Second),
		BackgroundTaskID:       getEnv("SOS_BACKGROUND_TASK_ID", "sos-location-sync"),
		DispatchInterval:       getEnvAsDuration("SOS_DISPATCH_INTERVAL", 5*time.Second),
		DispatchBatchSize:      getEnvAsInt("SOS_DISPATCH_BATCH_SIZE", 50),
	}
}
