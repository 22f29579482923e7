package utils

import "time"

// Application Constants
const (
	AppName    = "ReadyAid"
	AppVersion = "1.0.0"

	// Default values
	DefaultLanguage    = "en"
	DefaultCountryCode = "+1"
	DefaultTimeZone    = "UTC"

	// Authentication
	JWTAccessTokenTTL  = 24 * time.Hour
	JWTRefreshTokenTTL = 7 * 24 * time.Hour

	// Emergency session
	AccessTokenReuseWindow   = 12 * time.Hour
	LocationDistanceMeters   = 7.0
	LocationUpdateInterval   = 3 * time.Second
	LocationAccuracyFallback = 50.0 // meters, when the fix carries none

	// Notification
	NotificationRetryAttempts = 3
	NotificationTimeout       = 30 * time.Second
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusFailed  = "failed"
)

// Error Messages
const (
	ErrInvalidToken     = "invalid token"
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrNotFound         = "not found"
	ErrConflict         = "conflict"
	ErrValidationFailed = "validation failed"
	ErrUserNotFound     = "user not found"
	ErrSessionNotFound  = "session not found"
)

// Cache Keys
const (
	CacheUserPrefix          = "user:"
	CacheActiveSessionPrefix = "sos:active_session:"
)

// Event Types
const (
	EventSessionStarted   = "session_started"
	EventSessionEnded     = "session_ended"
	EventLocationUpdated  = "location_updated"
	EventContactsNotified = "contacts_notified"
	EventSMSComposed      = "sms_composed"
)

// Notification Channels
const (
	NotificationPush = "push"
	NotificationSMS  = "sms"
)
