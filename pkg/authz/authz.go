// Package authz implements cyroid's attribute-based visibility model: a
// principal may see a resource if they're an admin, its owner, it
// carries no tags at all, or they share at least one tag with it.
package authz

import (
	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/types"
)

// Authorizer evaluates visibility and mutation rules against a
// principal and the resource tags stored in the repository.
type Authorizer struct {
	repo repository.Repository
}

func New(repo repository.Repository) *Authorizer {
	return &Authorizer{repo: repo}
}

// Visible reports whether principal p may see a resource given its
// owner and tags, per the rule: admin, or owner, or the resource has no
// tags, or p and the resource share at least one tag.
func Visible(p *types.Principal, ownerID string, tags []string) bool {
	if p.IsAdmin() {
		return true
	}
	if ownerID != "" && p.ID == ownerID {
		return true
	}
	if len(tags) == 0 {
		return true
	}
	for _, rt := range tags {
		for _, pt := range p.Tags {
			if rt == pt {
				return true
			}
		}
	}
	return false
}

// CheckAccess is the point-check form of Visible: it loads the
// resource's tags from the repository and returns cyerr.Forbidden if p
// may not see it. A resource with no recorded tags is treated as public,
// never as not-found, by this call — callers resolve existence separately.
func (a *Authorizer) CheckAccess(kind types.ResourceKind, resourceID string, p *types.Principal, ownerID string) error {
	tags, err := a.repo.ListResourceTags(kind, resourceID)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Tag)
	}

	if !Visible(p, ownerID, names) {
		return cyerr.Forbidden("principal %s may not access %s %s", p.ID, kind, resourceID)
	}
	return nil
}

// Predicate is the set-level form of Visible used to filter a list of
// resources without a point-check per item: a resource is included iff
// owner == p.ID, or it has no tags in allTags, or it carries at least
// one tag in p.Tags. allTags maps resource IDs to their tag sets.
func Predicate(p *types.Principal, owners map[string]string, allTags map[string][]string) func(resourceID string) bool {
	if p.IsAdmin() {
		return func(string) bool { return true }
	}
	return func(resourceID string) bool {
		return Visible(p, owners[resourceID], allTags[resourceID])
	}
}

// CanMutateTags reports whether p may add or remove tags on a resource:
// ownership or admin.
func CanMutateTags(p *types.Principal, ownerID string) bool {
	return p.IsAdmin() || (ownerID != "" && p.ID == ownerID)
}

// CanMutatePrincipal reports whether p may change another principal's
// roles or tags: admin only, and never to strip their own admin role.
func CanMutatePrincipal(p *types.Principal, target *types.Principal, removingOwnAdmin bool) error {
	if !p.IsAdmin() {
		return cyerr.Forbidden("principal %s may not modify principal roles or tags", p.ID)
	}
	if p.ID == target.ID && removingOwnAdmin {
		return cyerr.Validation("a principal may not remove their own admin role")
	}
	return nil
}
