package server

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/packages"
)

var indexTemplate = template.Must(template.New("index").Parse(`<h1>Express Shipping Team</h1>
{{- if not . }}
<p>No packages available.</p>
{{- else }}
<ul>
{{- range . }}
  <li>
    <h2>{{ .PackageName }}</h2>
    <p>{{ .Description }}</p>
    <p><strong>Status:</strong> {{ .PackageStatus }}</p>
    <button onclick="window.location.href='/edit/{{ .ID }}'">Edit</button>
  </li>
{{- end }}
</ul>
{{- end }}
`))

var editTemplate = template.Must(template.New("edit").Parse(`<h1>Edit Package: {{ .PackageName }}</h1>
<form action="/api/packages/{{ .ID }}" method="POST" enctype="multipart/form-data">
  <input type="hidden" name="id" value="{{ .ID }}">
  <label>Package Name: <input type="text" name="packageName" value="{{ .PackageName }}" required></label><br>
  <label>Package Condition: <input type="text" name="packageCondition" value="{{ .PackageCondition }}" required></label><br>
  <label>Quantity: <input type="number" name="quantity" value="{{ .Quantity }}" required></label><br>
  <label>Description: <textarea name="description" required>{{ .Description }}</textarea></label><br>
  <label>Sender Name: <input type="text" name="senderName" value="{{ .SenderName }}" required></label><br>
  <label>Sender Address: <textarea name="senderAddress" required>{{ .SenderAddress }}</textarea></label><br>
  <label>Sender Country: <input type="text" name="senderCountry" value="{{ .SenderCountry }}" required></label><br>
  <label>Sender Email: <input type="email" name="senderEmail" value="{{ .SenderEmail }}" required></label><br>
  <label>Recipient Name: <input type="text" name="recipientName" value="{{ .RecipientName }}" required></label><br>
  <label>Recipient Address: <textarea name="recipientAddress" required>{{ .RecipientAddress }}</textarea></label><br>
  <label>Recipient Country: <input type="text" name="recipientCountry" value="{{ .RecipientCountry }}" required></label><br>
  <label>Recipient Email: <input type="email" name="recipientEmail" value="{{ .RecipientEmail }}" required></label><br>
  <label>Send Date: <input type="date" name="sendDate" value="{{ .SendDate }}" required></label><br>
  <label>Delivery Date: <input type="date" name="deliveryDate" value="{{ .DeliveryDate }}"></label><br>
  <label>Package Status: <input type="text" name="packageStatus" value="{{ .PackageStatus }}" required></label><br>
  <label>Current Country: <input type="text" name="packageCurrentCountry" value="{{ .PackageCurrentCountry }}" required></label><br>
  {{- if .Image }}
  <img src="{{ .Image }}" alt="{{ .PackageName }}" width="200"><br>
  {{- end }}
  <label>Image: <input type="file" name="image"></label><br>
  <button type="submit">Update Package</button>
</form>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.service.List(r.Context())
	if err != nil {
		s.logger.Error("Render package list", zap.Error(err))
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}
	s.render(w, indexTemplate, pkgs)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	pkg, err := s.service.Get(r.Context(), id)
	if err != nil {
		var notFoundErr *packages.NotFoundError
		if errors.As(err, &notFoundErr) {
			http.Error(w, "Package not found.", http.StatusNotFound)
			return
		}
		s.logger.Error("Render edit form", zap.String("id", id), zap.Error(err))
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}
	s.render(w, editTemplate, pkg)
}

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		s.logger.Error("Execute template", zap.String("template", tmpl.Name()), zap.Error(err))
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
