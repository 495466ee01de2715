package config

import (
	"os"
	"strconv"
	"time"
)

// UnknownResidentPolicy selects how the scan engine treats an MDOC with no
// registered resident. Exactly one policy is active per deployment; the two
// are never mixed implicitly.
type UnknownResidentPolicy string

const (
	// PolicyRegister records the scan and registers a placeholder resident.
	PolicyRegister UnknownResidentPolicy = "register"
	// PolicyReject refuses the scan without writing an event.
	PolicyReject UnknownResidentPolicy = "reject"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	DatabaseURL string
	RedisURL    string

	// ScanCooldown is the window after a scan during which further scans for
	// the same resident are treated as scanner double-fires.
	ScanCooldown time.Duration

	UnknownResidentPolicy UnknownResidentPolicy

	// RateLimitPerMinute caps POST /scans per client key. Zero disables.
	RateLimitPerMinute int

	// AuditBuffer is the audit publisher channel capacity.
	AuditBuffer int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("REZSCAN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	databaseURL := os.Getenv("REZSCAN_DATABASE_URL")

	cooldown := time.Second
	if v := os.Getenv("REZSCAN_SCAN_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cooldown = d
		}
	}

	policy := PolicyRegister
	if UnknownResidentPolicy(os.Getenv("REZSCAN_UNKNOWN_RESIDENT_POLICY")) == PolicyReject {
		policy = PolicyReject
	}

	ratePerMinute := 50
	if v := os.Getenv("REZSCAN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			ratePerMinute = n
		}
	}

	auditBuffer := 256
	if v := os.Getenv("REZSCAN_AUDIT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			auditBuffer = n
		}
	}

	return Server{
		Addr:                  addr,
		DatabaseURL:           databaseURL,
		RedisURL:              os.Getenv("REZSCAN_REDIS_URL"),
		ScanCooldown:          cooldown,
		UnknownResidentPolicy: policy,
		RateLimitPerMinute:    ratePerMinute,
		AuditBuffer:           auditBuffer,
	}
}
