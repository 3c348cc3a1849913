package notifications

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/procurement-forge/reqflow/pkg/models"
)

// RefKind classifies how much of a user reference could be normalized.
type RefKind int

const (
	// RefUnresolved means the field was absent or unusable.
	RefUnresolved RefKind = iota
	// RefEmailOnly means only an email address is known.
	RefEmailOnly
	// RefIDOnly means only an opaque user ID is known.
	RefIDOnly
	// RefFull means an embedded object supplied at least an email plus
	// identifying fields.
	RefFull
)

// UserRef is the canonical form of the dynamic approver/requestor
// fields. The stored values have accumulated several shapes over time
// (bare ID string, bare email string, embedded object); NormalizeRef is
// the single place that shape-sniffing happens, so handlers never touch
// the raw JSON.
type UserRef struct {
	Kind RefKind

	ID    string
	Email string

	Name        string
	FirstName   string
	LastName    string
	DisplayName string
}

// HasEmail reports whether an email address was resolved.
func (r UserRef) HasEmail() bool {
	return r.Email != ""
}

// refFields is the decode target for embedded reference objects.
type refFields struct {
	ID          string `mapstructure:"id"`
	UID         string `mapstructure:"uid"`
	UserID      string `mapstructure:"userId"`
	Email       string `mapstructure:"email"`
	Name        string `mapstructure:"name"`
	FirstName   string `mapstructure:"firstName"`
	LastName    string `mapstructure:"lastName"`
	DisplayName string `mapstructure:"displayName"`
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// NormalizeRef converts a raw user reference column into a UserRef.
func NormalizeRef(raw models.JSON) UserRef {
	if raw.IsNull() {
		return UserRef{Kind: RefUnresolved}
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return UserRef{Kind: RefUnresolved}
	}

	switch v := value.(type) {
	case string:
		return normalizeString(v)
	case map[string]any:
		return normalizeObject(v)
	default:
		// Scalar garbage (a number, a bool). Best effort: stringify and
		// look for anything email-shaped.
		if email := emailPattern.FindString(fmt.Sprint(v)); email != "" {
			return UserRef{Kind: RefEmailOnly, Email: strings.ToLower(email)}
		}
		return UserRef{Kind: RefUnresolved}
	}
}

func normalizeString(s string) UserRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return UserRef{Kind: RefUnresolved}
	}
	if strings.Contains(s, "@") {
		return UserRef{Kind: RefEmailOnly, Email: strings.ToLower(s)}
	}
	return UserRef{Kind: RefIDOnly, ID: s}
}

func normalizeObject(m map[string]any) UserRef {
	var fields refFields
	if err := mapstructure.WeakDecode(m, &fields); err != nil {
		return UserRef{Kind: RefUnresolved}
	}

	ref := UserRef{
		Name:        strings.TrimSpace(fields.Name),
		FirstName:   strings.TrimSpace(fields.FirstName),
		LastName:    strings.TrimSpace(fields.LastName),
		DisplayName: strings.TrimSpace(fields.DisplayName),
	}

	ref.ID = fields.ID
	if ref.ID == "" {
		ref.ID = fields.UID
	}
	if ref.ID == "" {
		ref.ID = fields.UserID
	}

	ref.Email = strings.ToLower(strings.TrimSpace(fields.Email))

	switch {
	case ref.Email != "":
		ref.Kind = RefFull
	case ref.ID != "":
		ref.Kind = RefIDOnly
	case ref.Name != "" || ref.FirstName != "" || ref.LastName != "" || ref.DisplayName != "":
		// Names without any ID or address still help content rendering.
		ref.Kind = RefFull
	default:
		ref.Kind = RefUnresolved
	}

	return ref
}

// ApproverRef normalizes the authoritative approver reference. Only when
// the approver field is entirely absent does it fall back to the
// workflow's currentApprover mirror.
func ApproverRef(pr *models.PurchaseRequest) UserRef {
	ref := NormalizeRef(pr.Approver)
	if ref.Kind != RefUnresolved {
		return ref
	}

	wf, err := pr.Workflow()
	if err != nil || wf.CurrentApprover == "" {
		return ref
	}
	return normalizeString(wf.CurrentApprover)
}

// RequestorRef normalizes the requestor reference, folding in the flat
// requestor columns the form also writes.
func RequestorRef(pr *models.PurchaseRequest) UserRef {
	ref := NormalizeRef(pr.Requestor)

	if ref.Email == "" && pr.RequestorEmail != "" {
		ref.Email = strings.ToLower(strings.TrimSpace(pr.RequestorEmail))
		if ref.Kind == RefUnresolved {
			ref.Kind = RefEmailOnly
		}
	}

	// Last resort for the address: anything email-shaped inside the raw
	// stored value.
	if ref.Email == "" && !pr.Requestor.IsNull() {
		if email := emailPattern.FindString(pr.Requestor.String()); email != "" {
			ref.Email = strings.ToLower(email)
			if ref.Kind == RefUnresolved {
				ref.Kind = RefEmailOnly
			}
		}
	}

	if ref.ID == "" && pr.RequestorID != "" {
		ref.ID = pr.RequestorID
		if ref.Kind == RefUnresolved {
			ref.Kind = RefIDOnly
		}
	}

	return ref
}
