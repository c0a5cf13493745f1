package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

const maxAuditedBody = 64 << 10

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		skipRequestBody := strings.Contains(contentType, "multipart/form-data")
		entry := AuditLogEntry{
			Timestamp: time.Now(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   getHandlerName(r),
			PackageID: mux.Vars(r)["id"],
		}

		if !skipRequestBody && r.Body != nil {
			requestBody, _ := io.ReadAll(io.LimitReader(r.Body, maxAuditedBody))
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(requestBody), r.Body))
			entry.Request = string(requestBody)
		}

		isUpdate := entry.PackageID != "" && (r.Method == http.MethodPut || r.Method == http.MethodPost)
		if isUpdate {
			if pkg, err := s.service.Get(r.Context(), entry.PackageID); err == nil {
				entry.OldStatus = pkg.PackageStatus
			}
		}

		wrw := newResponseWriterWrapper(w, true)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = string(wrw.GetBody())

		switch {
		case isUpdate && entry.StatusCode == http.StatusOK:
			var resp struct {
				Package struct {
					PackageStatus string `json:"packageStatus"`
				} `json:"package"`
			}
			if err := json.Unmarshal(wrw.GetBody(), &resp); err == nil {
				entry.NewStatus = resp.Package.PackageStatus
			}
		case entry.PackageID == "" && entry.StatusCode == http.StatusCreated:
			var resp struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(wrw.GetBody(), &resp); err == nil {
				entry.PackageID = resp.ID
			}
		}

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

func getHandlerName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unknown"
}
