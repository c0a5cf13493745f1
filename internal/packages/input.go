package packages

import (
	"io"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/storage"
)

// Image is a photo that accompanies a create or update request.
type Image struct {
	Name    string
	Content io.Reader
}

type PackageInput struct {
	PackageName           string
	PackageCondition      string
	Quantity              string
	Description           string
	SenderName            string
	SenderAddress         string
	SenderCountry         string
	SenderEmail           string
	SenderCountryCode     string
	RecipientName         string
	RecipientAddress      string
	RecipientCountry      string
	RecipientEmail        string
	RecipientCountryCode  string
	SendDate              string
	DeliveryDate          string
	PackageStatus         string
	PackageCurrentCountry string
	Image                 *Image
}

func (in PackageInput) missingFields() []string {
	var missing []string
	if in.PackageName == "" {
		missing = append(missing, "packageName")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if in.SenderName == "" {
		missing = append(missing, "senderName")
	}
	if in.RecipientName == "" {
		missing = append(missing, "recipientName")
	}
	return missing
}

func (in PackageInput) toPackage(id string) storage.Package {
	return storage.Package{
		ID:                    id,
		PackageName:           in.PackageName,
		PackageCondition:      in.PackageCondition,
		Quantity:              in.Quantity,
		Description:           in.Description,
		SenderName:            in.SenderName,
		SenderAddress:         in.SenderAddress,
		SenderCountry:         in.SenderCountry,
		SenderEmail:           in.SenderEmail,
		SenderCountryCode:     in.SenderCountryCode,
		RecipientName:         in.RecipientName,
		RecipientAddress:      in.RecipientAddress,
		RecipientCountry:      in.RecipientCountry,
		RecipientEmail:        in.RecipientEmail,
		RecipientCountryCode:  in.RecipientCountryCode,
		SendDate:              in.SendDate,
		DeliveryDate:          in.DeliveryDate,
		PackageStatus:         in.PackageStatus,
		PackageCurrentCountry: in.PackageCurrentCountry,
	}
}

// PackageUpdate is a partial edit. A nil field keeps the stored value,
// a non-nil one replaces it, even with an empty string. There is no way to
// change a package ID.
type PackageUpdate struct {
	PackageName           *string
	PackageCondition      *string
	Quantity              *string
	Description           *string
	SenderName            *string
	SenderAddress         *string
	SenderCountry         *string
	SenderEmail           *string
	SenderCountryCode     *string
	RecipientName         *string
	RecipientAddress      *string
	RecipientCountry      *string
	RecipientEmail        *string
	RecipientCountryCode  *string
	SendDate              *string
	DeliveryDate          *string
	PackageStatus         *string
	PackageCurrentCountry *string
	Image                 *Image
}

func (u PackageUpdate) apply(p *storage.Package) {
	set(&p.PackageName, u.PackageName)
	set(&p.PackageCondition, u.PackageCondition)
	set(&p.Quantity, u.Quantity)
	set(&p.Description, u.Description)
	set(&p.SenderName, u.SenderName)
	set(&p.SenderAddress, u.SenderAddress)
	set(&p.SenderCountry, u.SenderCountry)
	set(&p.SenderEmail, u.SenderEmail)
	set(&p.SenderCountryCode, u.SenderCountryCode)
	set(&p.RecipientName, u.RecipientName)
	set(&p.RecipientAddress, u.RecipientAddress)
	set(&p.RecipientCountry, u.RecipientCountry)
	set(&p.RecipientEmail, u.RecipientEmail)
	set(&p.RecipientCountryCode, u.RecipientCountryCode)
	set(&p.SendDate, u.SendDate)
	set(&p.DeliveryDate, u.DeliveryDate)
	set(&p.PackageStatus, u.PackageStatus)
	set(&p.PackageCurrentCountry, u.PackageCurrentCountry)
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
