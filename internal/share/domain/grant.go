// Package domain holds the share grant model. A grant is the authoritative
// record of one party's access to another party's document.
package domain

import (
	"errors"
	"time"
)

// Permission is the access level a grant confers.
type Permission string

const (
	PermissionView     Permission = "view"
	PermissionDownload Permission = "download"
)

// ValidPermission reports whether p is a known permission level.
func ValidPermission(p Permission) bool {
	return p == PermissionView || p == PermissionDownload
}

// Covers reports whether a grant at level p satisfies a request for required.
// Download subsumes view; view satisfies only view.
func (p Permission) Covers(required Permission) bool {
	if p == PermissionDownload {
		return required == PermissionView || required == PermissionDownload
	}
	return p == PermissionView && required == PermissionView
}

// Relationship tags how the grantor knows the grantee.
type Relationship string

const (
	RelationshipFather  Relationship = "father"
	RelationshipMother  Relationship = "mother"
	RelationshipSpouse  Relationship = "spouse"
	RelationshipChild   Relationship = "child"
	RelationshipSibling Relationship = "sibling"
	RelationshipOther   Relationship = "other"
)

// ValidRelationship reports whether r is a known relationship tag.
func ValidRelationship(r Relationship) bool {
	switch r {
	case RelationshipFather, RelationshipMother, RelationshipSpouse,
		RelationshipChild, RelationshipSibling, RelationshipOther:
		return true
	}
	return false
}

// MaxMessageLen bounds the optional note attached to a grant.
const MaxMessageLen = 200

// Grant authorizes one grantee to access one document under a bounded
// permission and time window. Revocation flips Active and is terminal;
// expiry is checked against ExpiresAt on every read.
type Grant struct {
	ID             string
	DocumentID     string
	GrantorID      string
	GranteeID      string
	Permission     Permission
	Relationship   Relationship
	Message        string
	Active         bool
	ExpiresAt      time.Time
	AccessCount    int
	LastAccessedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Live reports whether the grant honors accesses at the given instant.
// Both conditions are required: a revoked grant stays dead before expiry,
// and an expired grant is dead even while Active is still true.
func (g *Grant) Live(now time.Time) bool {
	return g.Active && now.Before(g.ExpiresAt)
}

// Validate checks field-level rules on a grant.
func (g *Grant) Validate() error {
	if !ValidPermission(g.Permission) {
		return errors.New("unknown permission level")
	}
	if g.Relationship != "" && !ValidRelationship(g.Relationship) {
		return errors.New("unknown relationship")
	}
	if len(g.Message) > MaxMessageLen {
		return errors.New("message cannot exceed 200 characters")
	}
	return nil
}
