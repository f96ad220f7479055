package domain

import (
	"errors"
	"strings"
	"time"
)

// Document is the metadata record for an owned file. Bytes live in the blob
// store under ObjectKey; this row never carries content.
type Document struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Category    Category
	Type        DocType

	FileName     string // stored name (uuid-based)
	OriginalName string // name as uploaded
	ObjectKey    string // blob store key
	MimeType     string
	FileSize     int64

	// Shared and SharedWith are an advisory cache for owner-side listing;
	// grants are authoritative for access decisions.
	Shared     bool
	SharedWith []ShareRef

	Tags     []string
	Archived bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShareRef is one entry of the denormalized shared-party list.
type ShareRef struct {
	UserID     string    `json:"user_id"`
	Permission string    `json:"permission"`
	SharedAt   time.Time `json:"shared_at"`
}

type Category string

const (
	CategoryEducation  Category = "education"
	CategoryHealthcare Category = "healthcare"
	CategoryRailway    Category = "railway"
	CategoryIdentity   Category = "identity"
	CategoryFinancial  Category = "financial"
	CategoryLegal      Category = "legal"
	CategoryOther      Category = "other"
)

type DocType string

const (
	TypeMarksheet      DocType = "marksheet"
	TypeCertificate    DocType = "certificate"
	TypePANCard        DocType = "pan_card"
	TypeNationalID     DocType = "national_id"
	TypePassport       DocType = "passport"
	TypeDrivingLicense DocType = "driving_license"
	TypeOther          DocType = "other"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryEducation, CategoryHealthcare, CategoryRailway, CategoryIdentity,
		CategoryFinancial, CategoryLegal, CategoryOther:
		return true
	}
	return false
}

// ValidDocType reports whether t is a known document type.
func ValidDocType(t DocType) bool {
	switch t {
	case TypeMarksheet, TypeCertificate, TypePANCard, TypeNationalID,
		TypePassport, TypeDrivingLicense, TypeOther:
		return true
	}
	return false
}

// Validate validates the document for persistence.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("title is required")
	}
	if len(d.Title) > 100 {
		return errors.New("title cannot exceed 100 characters")
	}
	if len(d.Description) > 500 {
		return errors.New("description cannot exceed 500 characters")
	}
	if !ValidCategory(d.Category) {
		return errors.New("unknown document category")
	}
	if !ValidDocType(d.Type) {
		return errors.New("unknown document type")
	}
	if d.OwnerID == "" {
		return errors.New("owner is required")
	}
	if d.ObjectKey == "" {
		return errors.New("object key is required")
	}
	return nil
}
