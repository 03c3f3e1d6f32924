// Package access decides what a caller may do with a document. The decision
// is a pure function over the current document record; callers must re-fetch
// the record per request because access lists mutate independently.
package access

import "pdfvault/internal/models"

// Tier is the permission level granted to a caller for one document.
type Tier int

const (
	TierDenied Tier = iota
	TierViewOnly
	TierViewAndSave
)

func (t Tier) String() string {
	switch t {
	case TierViewOnly:
		return "view"
	case TierViewAndSave:
		return "view+save"
	default:
		return "denied"
	}
}

// CanView reports whether the tier permits reading the document bytes.
func (t Tier) CanView() bool { return t == TierViewOnly || t == TierViewAndSave }

// CanSave reports whether the tier permits downloading or copying.
func (t Tier) CanSave() bool { return t == TierViewAndSave }

// Caller is the requester identity, as established by token verification.
// Unauthenticated callers have Authenticated=false and empty UID/Email.
type Caller struct {
	Authenticated bool
	UID           string
	Email         string
}

// Decision is the evaluator's result for one (document, caller) pair.
type Decision struct {
	Tier    Tier
	IsOwner bool
}

// Evaluate computes the caller's permission tier. Precedence, first match
// wins: owner, explicit access-list entry, public share, denied. Owner
// access is absolute and cannot be narrowed by the access list. Legacy
// string entries grant view only; they carry no canSave field.
func Evaluate(doc *models.Document, caller Caller) Decision {
	if caller.Authenticated && caller.UID != "" && caller.UID == doc.OwnerID {
		return Decision{Tier: TierViewAndSave, IsOwner: true}
	}

	if caller.Email != "" {
		for _, entry := range doc.AccessUsers {
			if entry.Email != caller.Email {
				continue
			}
			if !entry.Legacy && entry.CanSave {
				return Decision{Tier: TierViewAndSave}
			}
			return Decision{Tier: TierViewOnly}
		}
	}

	if doc.IsPublic {
		if caller.Authenticated && doc.AllowSave {
			return Decision{Tier: TierViewAndSave}
		}
		return Decision{Tier: TierViewOnly}
	}

	return Decision{Tier: TierDenied}
}
