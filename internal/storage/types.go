package storage

import (
	"bytes"
	"encoding/json"
)

// Package is a single tracked shipment. Only ID and the four required
// fields are always serialized; optional fields are dropped when empty.
type Package struct {
	ID                    string  `json:"id"`
	PackageName           string  `json:"packageName"`
	PackageCondition      string  `json:"packageCondition,omitempty"`
	Quantity              string  `json:"quantity,omitempty"`
	Description           string  `json:"description"`
	SenderName            string  `json:"senderName"`
	SenderAddress         string  `json:"senderAddress,omitempty"`
	SenderCountry         string  `json:"senderCountry,omitempty"`
	SenderEmail           string  `json:"senderEmail,omitempty"`
	SenderCountryCode     string  `json:"senderCountryCode,omitempty"`
	RecipientName         string  `json:"recipientName"`
	RecipientAddress      string  `json:"recipientAddress,omitempty"`
	RecipientCountry      string  `json:"recipientCountry,omitempty"`
	RecipientEmail        string  `json:"recipientEmail,omitempty"`
	RecipientCountryCode  string  `json:"recipientCountryCode,omitempty"`
	SendDate              string  `json:"sendDate,omitempty"`
	DeliveryDate          string  `json:"deliveryDate,omitempty"`
	PackageStatus         string  `json:"packageStatus,omitempty"`
	PackageCurrentCountry string  `json:"packageCurrentCountry,omitempty"`
	Image                 *string `json:"image"`
}

// UnmarshalJSON also accepts numbers and booleans for text fields, so data
// files holding "quantity": 3 still load. The literal text is kept.
func (p *Package) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for name, value := range fields {
		if name == "image" || !isScalarLiteral(value) {
			continue
		}
		quoted, err := json.Marshal(string(bytes.TrimSpace(value)))
		if err != nil {
			return err
		}
		fields[name] = quoted
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	type plain Package
	return json.Unmarshal(normalized, (*plain)(p))
}

func isScalarLiteral(value json.RawMessage) bool {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return false
	}
	switch c := value[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		return true
	case bytes.Equal(value, []byte("true")), bytes.Equal(value, []byte("false")):
		return true
	}
	return false
}

// Clone returns a deep copy, so callers can't alias the image pointer.
func (p Package) Clone() Package {
	if p.Image != nil {
		img := *p.Image
		p.Image = &img
	}
	return p
}

func clonePackages(pkgs []Package) []Package {
	out := make([]Package, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Clone()
	}
	return out
}
