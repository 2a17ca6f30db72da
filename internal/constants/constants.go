package constants

import "time"

// Context keys
const (
	ContextKeyUserID = "user_id"
)

// Pagination
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Auth
const (
	MinPasswordLength = 8
)

// Party codes: uppercase letters and digits minus I, O, 0 and 1, which are
// easily confused when transcribed by hand.
const (
	PartyCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	PartyCodeLength      = 6
	PartyCodeMaxAttempts = 5
)

// Realtime cache tunables.
const (
	DefaultPollInterval    = 30 * time.Second
	DefaultStalenessFactor = 2 // staleness threshold = factor * poll interval
	DefaultFreshnessWindow = 15 * time.Minute
	DefaultRefreshThrottle = time.Second
)

// SSEHeartbeatInterval is how often live feeds emit a keep-alive event so
// intermediaries don't drop idle streams.
const SSEHeartbeatInterval = 15 * time.Second
