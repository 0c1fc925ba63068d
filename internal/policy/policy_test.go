package policy

import (
	"testing"

	"taskvault/internal/models"
)

func TestCanAccess(t *testing.T) {
	owner := models.Principal{ID: "u1", Role: models.RoleUser}
	other := models.Principal{ID: "u2", Role: models.RoleUser}
	admin := models.Principal{ID: "a1", Role: models.RoleAdmin}

	cases := []struct {
		name      string
		principal models.Principal
		ownerID   string
		action    Action
		want      bool
	}{
		{"owner reads own", owner, "u1", ActionRead, true},
		{"owner writes own", owner, "u1", ActionWrite, true},
		{"owner deletes own", owner, "u1", ActionDelete, true},
		{"non-owner read denied", other, "u1", ActionRead, false},
		{"non-owner write denied", other, "u1", ActionWrite, false},
		{"non-owner delete denied", other, "u1", ActionDelete, false},
		{"admin reads any", admin, "u1", ActionRead, true},
		{"admin writes any", admin, "u1", ActionWrite, true},
		{"admin deletes any", admin, "u1", ActionDelete, true},
		{"empty principal id denied", models.Principal{Role: models.RoleUser}, "", ActionWrite, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccess(tc.principal, tc.ownerID, tc.action); got != tc.want {
				t.Errorf("CanAccess(%v, %q, %v) = %v, want %v",
					tc.principal, tc.ownerID, tc.action, got, tc.want)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(models.Principal{ID: "a", Role: models.RoleAdmin}) {
		t.Error("admin role should be admin")
	}
	if IsAdmin(models.Principal{ID: "u", Role: models.RoleUser}) {
		t.Error("user role should not be admin")
	}
	if IsAdmin(models.Principal{ID: "x"}) {
		t.Error("empty role should not be admin")
	}
}
