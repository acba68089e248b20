/*
Package authz implements the ABAC visibility rule shared by every list
and point-check in cyroid: a principal P may see resource R iff P is an
admin, P owns R, R carries no tags, or P and R share at least one tag.

	if !authz.Visible(principal, rng.OwnerID, tagNames) {
		// omit from a listing
	}
	if err := authorizer.CheckAccess(types.ResourceKindRange, rng.ID, principal, rng.OwnerID); err != nil {
		// return err to the caller (Forbidden)
	}
*/
package authz
