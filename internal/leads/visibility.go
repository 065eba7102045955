package leads

import "github.com/acqboard/pkg/models"

// Visible is the single role-visibility policy for conversation
// threads. Every consumer (snapshot builder, corpus sampler, CRUD
// listings) goes through this function instead of re-deriving the
// rules.
//
// Owners and coaches see everything. Setters see a thread only when it
// is assigned to them, or shared with setters and not hidden from them.
func Visible(role string, actorID int64, t *Thread) bool {
	if IsElevatedRole(role) {
		return true
	}
	if t.AssignedSetterID != nil && *t.AssignedSetterID == actorID {
		return true
	}
	return t.SharedWithSetters && !t.HiddenFromSetters
}

// IsElevatedRole reports whether the role grants full inbox access.
func IsElevatedRole(role string) bool {
	return models.IsElevated(role)
}

// FilterVisible returns the subset of threads the actor may see,
// preserving input order.
func FilterVisible(role string, actorID int64, threads []*Thread) []*Thread {
	out := make([]*Thread, 0, len(threads))
	for _, t := range threads {
		if Visible(role, actorID, t) {
			out = append(out, t)
		}
	}
	return out
}
