package identity

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/phone"
)

// ContactInput carries whatever fields were captured for a person at one
// touchpoint (box office, self registration, promoter entry).
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Instagram string
}

// Registry maintains the one-Identity-per-phone-family invariant with
// additive merges: new data fills previously empty fields and never
// overwrites populated ones.
type Registry struct {
	repo    Repository
	matcher *phone.Matcher
}

// NewRegistry wires the person registry.
func NewRegistry(repo Repository, matcher *phone.Matcher) (*Registry, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity repository required")
	}
	if matcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "phone matcher required")
	}
	return &Registry{repo: repo, matcher: matcher}, nil
}

// WithTx returns a registry scoped to the given transaction.
func (g *Registry) WithTx(tx *gorm.DB) *Registry {
	return &Registry{repo: g.repo.WithTx(tx), matcher: g.matcher}
}

// Upsert resolves the input to an existing Identity via its phone family
// or creates one. Returns nil without error when the phone is unusable
// (too short to match safely).
func (g *Registry) Upsert(ctx context.Context, input ContactInput) (*models.Identity, error) {
	normalized := g.matcher.Normalize(input.Phone)
	if normalized == "" || !g.matcher.Matchable(normalized) {
		return nil, nil
	}

	variants := g.normalizedVariants(input.Phone)
	existing, err := g.repo.FindIdentityByNormalizedPhones(ctx, variants)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find identity by phone family")
	}

	if existing == nil {
		created := &models.Identity{
			NormalizedPhone: normalized,
		}
		fillIdentity(created, input)
		if err := g.repo.CreateIdentity(ctx, created); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create identity")
		}
		return created, nil
	}

	if fillIdentity(existing, input) {
		if err := g.repo.UpdateIdentity(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update identity")
		}
	}
	return existing, nil
}

// normalizedVariants returns the digit-only forms of every variant so the
// lookup can hit rows stored under any historical prefix convention.
func (g *Registry) normalizedVariants(raw string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, variant := range g.matcher.Variants(raw) {
		digits := g.matcher.Normalize(variant)
		if digits == "" {
			continue
		}
		if _, ok := seen[digits]; ok {
			continue
		}
		seen[digits] = struct{}{}
		out = append(out, digits)
	}
	return out
}

// fillIdentity applies the additive merge and reports whether anything changed.
func fillIdentity(identity *models.Identity, input ContactInput) bool {
	changed := false
	set := func(dst **string, value string) {
		value = strings.TrimSpace(value)
		if value == "" || *dst != nil {
			return
		}
		*dst = &value
		changed = true
	}
	set(&identity.FirstName, input.FirstName)
	set(&identity.LastName, input.LastName)
	set(&identity.Email, input.Email)
	set(&identity.Phone, input.Phone)
	set(&identity.Instagram, input.Instagram)
	return changed
}
