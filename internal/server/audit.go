package server

import (
	"time"
)

type AuditLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Handler    string    `json:"handler"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	PackageID  string    `json:"package_id,omitempty"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	Request    string    `json:"request,omitempty"`
	Response   string    `json:"response,omitempty"`
}

// key partitions events by package so one package's history stays ordered.
func (e AuditLogEntry) key() []byte {
	if e.PackageID != "" {
		return []byte(e.PackageID)
	}
	return []byte(e.Handler)
}
