package leads

import (
	"testing"

	"github.com/acqboard/pkg/models"
)

func TestVisible_Roles(t *testing.T) {
	setterID := int64(42)
	otherID := int64(7)

	assigned := &Thread{AssignedSetterID: &setterID}
	shared := &Thread{SharedWithSetters: true}
	sharedHidden := &Thread{SharedWithSetters: true, HiddenFromSetters: true}
	private := &Thread{}

	for _, role := range []string{models.RoleOwner, models.RoleCoach} {
		for _, th := range []*Thread{assigned, shared, sharedHidden, private} {
			if !Visible(role, otherID, th) {
				t.Errorf("%s should see every thread", role)
			}
		}
	}

	if !Visible(models.RoleSetter, setterID, assigned) {
		t.Error("setter should see threads assigned to them")
	}
	if Visible(models.RoleSetter, otherID, assigned) {
		t.Error("setter should not see threads assigned to someone else")
	}
	if !Visible(models.RoleSetter, otherID, shared) {
		t.Error("setter should see shared threads")
	}
	if Visible(models.RoleSetter, otherID, sharedHidden) {
		t.Error("setter should not see hidden threads even when shared")
	}
	if Visible(models.RoleSetter, otherID, private) {
		t.Error("setter should not see unshared threads")
	}
}

func TestFilterVisible_PreservesOrder(t *testing.T) {
	threads := []*Thread{
		{ID: 1, SharedWithSetters: true},
		{ID: 2},
		{ID: 3, SharedWithSetters: true},
	}
	got := FilterVisible(models.RoleSetter, 9, threads)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("unexpected filtered set: %+v", got)
	}
}
