package health

import (
	"regexp"
	"time"

	"github.com/c360/virtualsensor/component"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the health of a component or of a whole system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries the counters reported with a status.
type Metrics struct {
	Uptime       time.Duration `json:"uptime"`
	ErrorCount   int           `json:"error_count"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

func newStatus(name, state, message string) Status {
	return Status{
		Component: name,
		Healthy:   state == StatusHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status
func NewHealthy(name, message string) Status { return newStatus(name, StatusHealthy, message) }

// NewDegraded creates a degraded status
func NewDegraded(name, message string) Status { return newStatus(name, StatusDegraded, message) }

// NewUnhealthy creates an unhealthy status
func NewUnhealthy(name, message string) Status { return newStatus(name, StatusUnhealthy, message) }

// Aggregate combines sub-statuses into one status for name.
func Aggregate(name string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(name, "No components registered")
	}

	worst := StatusHealthy
	for _, sub := range subs {
		switch sub.Status {
		case StatusUnhealthy:
			worst = StatusUnhealthy
		case StatusDegraded:
			if worst == StatusHealthy {
				worst = StatusDegraded
			}
		}
	}

	var agg Status
	switch worst {
	case StatusUnhealthy:
		agg = NewUnhealthy(name, "One or more components are unhealthy")
	case StatusDegraded:
		agg = NewDegraded(name, "One or more components are degraded")
	default:
		agg = NewHealthy(name, "All components are healthy")
	}
	agg.SubStatuses = append([]Status(nil), subs...)
	return agg
}

var sanitizers = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?:https?|nats|wss?|rediss?)://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`), "[REDACTED]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?::\d{2,5})?\b`), "[IP]"},
	{regexp.MustCompile(`(^|\s)/[a-zA-Z0-9/_.-]+`), "${1}[PATH]"},
}

// sanitizeErrorMessage removes URLs, credentials, addresses and file paths.
func sanitizeErrorMessage(msg string) string {
	for _, s := range sanitizers {
		msg = s.re.ReplaceAllString(msg, s.with)
	}
	return msg
}

// FromComponentHealth converts a component's self-reported health. A
// running component that has seen errors is degraded.
func FromComponentHealth(name string, ch component.HealthStatus) Status {
	var st Status
	switch {
	case !ch.Healthy:
		st = NewUnhealthy(name, "Component not running")
	case ch.LastError != "":
		st = NewDegraded(name, "Component running with errors")
	default:
		st = NewHealthy(name, "Component healthy")
	}
	if ch.LastError != "" {
		st.Message += ": " + sanitizeErrorMessage(ch.LastError)
	}
	st.Metrics = &Metrics{
		Uptime:       ch.Uptime,
		ErrorCount:   ch.ErrorCount,
		LastActivity: ch.LastCheck,
	}
	return st
}
