package notifications

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/procurement-forge/reqflow/pkg/models"
)

// RequestorFallbackName is rendered when no requestor data resolves at
// all. The bare word "Unknown" was shipped once and reported as a
// defect; do not bring it back.
const RequestorFallbackName = "PR Requestor"

// Directory looks up user records for name and address resolution. A
// missing user is returned as (nil, nil); errors are reserved for store
// failures.
type Directory interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// gormDirectory is the database-backed Directory.
type gormDirectory struct {
	db *gorm.DB
}

// NewDirectory returns a Directory reading the users table.
func NewDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) UserByID(ctx context.Context, id string) (*models.User, error) {
	return models.GetUserByExternalID(d.db.WithContext(ctx), id)
}

func (d *gormDirectory) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return models.GetUserByEmail(d.db.WithContext(ctx), email)
}

// Resolver resolves display names and addresses for the people on a
// purchase request. Lookup failures degrade to placeholder values; they
// never fail a dispatch.
type Resolver struct {
	dir Directory
	log hclog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(dir Directory, log hclog.Logger) *Resolver {
	return &Resolver{dir: dir, log: log}
}

// RequestorName resolves a human-friendly requestor name, trying in
// order: user record by ID, user record by email, the embedded object's
// own name fields, a bare string treated as a name, a name derived from
// the email local part, and finally RequestorFallbackName.
func (r *Resolver) RequestorName(ctx context.Context, pr *models.PurchaseRequest) string {
	ref := RequestorRef(pr)

	id := ref.ID
	if id == "" {
		id = pr.RequestorID
	}
	if id != "" {
		if name := r.nameByID(ctx, id); name != "" {
			return name
		}
	}

	if ref.Email != "" {
		if name := r.nameByEmail(ctx, ref.Email); name != "" {
			return name
		}
	}

	if name := nameFromRef(ref); name != "" {
		return name
	}

	// A bare string without an @ stored in the requestor field is
	// someone typing their own name. The flat requestorId column does
	// not count here; only the embedded value can carry a typed name.
	if embedded := NormalizeRef(pr.Requestor); embedded.Kind == RefIDOnly {
		return embedded.ID
	}

	if ref.Email != "" {
		if name := deriveNameFromEmail(ref.Email); name != "" {
			return name
		}
	}

	return RequestorFallbackName
}

// ApproverName resolves the approver's display name. Unlike the
// requestor chain there is no derive-from-email step: when only an
// opaque ID is known the name is a labeled placeholder, so the email
// body never silently omits the approver.
func (r *Resolver) ApproverName(ctx context.Context, pr *models.PurchaseRequest) string {
	ref := ApproverRef(pr)

	if ref.ID != "" {
		if name := r.nameByID(ctx, ref.ID); name != "" {
			return name
		}
	}

	if ref.Email != "" {
		if name := r.nameByEmail(ctx, ref.Email); name != "" {
			return name
		}
	}

	if name := nameFromRef(ref); name != "" {
		return name
	}

	if ref.Email != "" {
		return ref.Email
	}

	if ref.ID != "" {
		return fmt.Sprintf("Approver (ID: %s)", ref.ID)
	}

	return "Approver"
}

// ApproverEmail resolves the approver address with the documented
// priority: embedded object email, literal email string, user record by
// opaque ID, then the workflow currentApprover mirror. Returns "" when
// nothing resolves; callers must treat that as a degraded dispatch, not
// an error.
func (r *Resolver) ApproverEmail(ctx context.Context, pr *models.PurchaseRequest) string {
	ref := ApproverRef(pr)

	if ref.Email != "" {
		return ref.Email
	}

	if ref.ID != "" {
		user, err := r.dir.UserByID(ctx, ref.ID)
		if err != nil {
			r.log.Warn("approver lookup failed", "approver_id", ref.ID, "error", err)
		}
		if user != nil && user.EmailAddress != "" {
			return strings.ToLower(user.EmailAddress)
		}
	}

	return ""
}

// RequestorEmail resolves the requestor address, or "" when nothing
// resolves.
func (r *Resolver) RequestorEmail(ctx context.Context, pr *models.PurchaseRequest) string {
	ref := RequestorRef(pr)

	if ref.Email != "" {
		return ref.Email
	}

	if ref.ID != "" {
		user, err := r.dir.UserByID(ctx, ref.ID)
		if err != nil {
			r.log.Warn("requestor lookup failed", "requestor_id", ref.ID, "error", err)
		}
		if user != nil && user.EmailAddress != "" {
			return strings.ToLower(user.EmailAddress)
		}
	}

	return ""
}

func (r *Resolver) nameByID(ctx context.Context, id string) string {
	user, err := r.dir.UserByID(ctx, id)
	if err != nil {
		r.log.Warn("user lookup by ID failed", "user_id", id, "error", err)
		return ""
	}
	return nameFromUser(user)
}

func (r *Resolver) nameByEmail(ctx context.Context, email string) string {
	user, err := r.dir.UserByEmail(ctx, email)
	if err != nil {
		r.log.Warn("user lookup by email failed", "email", email, "error", err)
		return ""
	}
	return nameFromUser(user)
}

// nameFromUser extracts a usable name from a user record: first+last,
// then name, then display name. Placeholder values are skipped.
func nameFromUser(user *models.User) string {
	if user == nil {
		return ""
	}
	candidates := []string{
		strings.TrimSpace(user.FirstName + " " + user.LastName),
		user.Name,
		user.DisplayName,
	}
	for _, c := range candidates {
		if usableName(c) {
			return strings.TrimSpace(c)
		}
	}
	return ""
}

// nameFromRef extracts a usable name from the embedded reference object.
func nameFromRef(ref UserRef) string {
	candidates := []string{
		ref.Name,
		strings.TrimSpace(ref.FirstName + " " + ref.LastName),
		ref.DisplayName,
	}
	for _, c := range candidates {
		if usableName(c) {
			return strings.TrimSpace(c)
		}
	}
	return ""
}

func usableName(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, "unknown")
}

// deriveNameFromEmail builds a human name from the local part of an
// email address: "jane.doe@x.com" becomes "Jane Doe".
func deriveNameFromEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	local := email[:at]

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return ""
	}

	for i, p := range parts {
		parts[i] = titleCase(p)
	}
	return strings.Join(parts, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
