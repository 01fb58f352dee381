package config

import "time"

const (
	// Input limits enforced at the HTTP and bot boundaries. The ledger itself
	// accepts any length.
	MaxRegionLength  = 64
	MaxSubjectLength = 200
	MaxDetailsLength = 4096
	MaxContentLength = 4096

	// Message paging
	DefaultPageSize = 50
	MaxPageSize     = 500

	// Tokens
	TokenIssuer     = "safecase-service"
	DefaultTokenTTL = 72 * time.Hour
	MinSecretLength = 32

	// Server
	ShutdownTimeout = 10 * time.Second
)
