package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/packages"
)

// packageRequest holds the fields present in a create or update body,
// regardless of whether it arrived as multipart, urlencoded or JSON.
type packageRequest struct {
	fields map[string]string
	image  *packages.Image
	file   multipart.File
}

func (s *Server) parsePackageRequest(r *http.Request) (*packageRequest, error) {
	req := &packageRequest{fields: map[string]string{}}

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("parse content type: %w", err)
		}
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				req.fields[key] = values[0]
			}
		}
		file, header, err := r.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return nil, fmt.Errorf("read image: %w", err)
		default:
			req.file = file
			req.image = &packages.Image{Name: header.Filename, Content: file}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				req.fields[key] = values[0]
			}
		}
	case "application/json", "":
		if err := decodeJSONFields(r.Body, req.fields); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// decodeJSONFields accepts a JSON object whose values are strings, numbers
// or booleans. null counts as absent. An empty body yields no fields.
func decodeJSONFields(body io.Reader, fields map[string]string) error {
	if body == nil {
		return nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode json body: %w", err)
	}
	for key, value := range raw {
		value = bytes.TrimSpace(value)
		switch {
		case bytes.Equal(value, []byte("null")):
		case len(value) > 0 && value[0] == '"':
			var str string
			if err := json.Unmarshal(value, &str); err != nil {
				return fmt.Errorf("decode field %s: %w", key, err)
			}
			fields[key] = str
		case len(value) > 0 && (value[0] == '{' || value[0] == '['):
			return fmt.Errorf("field %s: objects and arrays are not accepted", key)
		default:
			fields[key] = string(value)
		}
	}
	return nil
}

func (r *packageRequest) Close() {
	if r.file != nil {
		r.file.Close()
	}
}

func (r *packageRequest) input() packages.PackageInput {
	f := r.fields
	return packages.PackageInput{
		PackageName:           f["packageName"],
		PackageCondition:      f["packageCondition"],
		Quantity:              f["quantity"],
		Description:           f["description"],
		SenderName:            f["senderName"],
		SenderAddress:         f["senderAddress"],
		SenderCountry:         f["senderCountry"],
		SenderEmail:           f["senderEmail"],
		SenderCountryCode:     f["senderCountryCode"],
		RecipientName:         f["recipientName"],
		RecipientAddress:      f["recipientAddress"],
		RecipientCountry:      f["recipientCountry"],
		RecipientEmail:        f["recipientEmail"],
		RecipientCountryCode:  f["recipientCountryCode"],
		SendDate:              f["sendDate"],
		DeliveryDate:          f["deliveryDate"],
		PackageStatus:         f["packageStatus"],
		PackageCurrentCountry: f["packageCurrentCountry"],
		Image:                 r.image,
	}
}

func (r *packageRequest) update() packages.PackageUpdate {
	return packages.PackageUpdate{
		PackageName:           r.field("packageName"),
		PackageCondition:      r.field("packageCondition"),
		Quantity:              r.field("quantity"),
		Description:           r.field("description"),
		SenderName:            r.field("senderName"),
		SenderAddress:         r.field("senderAddress"),
		SenderCountry:         r.field("senderCountry"),
		SenderEmail:           r.field("senderEmail"),
		SenderCountryCode:     r.field("senderCountryCode"),
		RecipientName:         r.field("recipientName"),
		RecipientAddress:      r.field("recipientAddress"),
		RecipientCountry:      r.field("recipientCountry"),
		RecipientEmail:        r.field("recipientEmail"),
		RecipientCountryCode:  r.field("recipientCountryCode"),
		SendDate:              r.field("sendDate"),
		DeliveryDate:          r.field("deliveryDate"),
		PackageStatus:         r.field("packageStatus"),
		PackageCurrentCountry: r.field("packageCurrentCountry"),
		Image:                 r.image,
	}
}

func (r *packageRequest) field(key string) *string {
	v, ok := r.fields[key]
	if !ok {
		return nil
	}
	return &v
}
