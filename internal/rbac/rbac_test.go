package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleVisitor, ActionRead, true},
		{RoleVisitor, ActionComment, false},
		{RoleMember, ActionComment, true},
		{RoleMember, ActionModerate, false},
		{RoleModerator, ActionModerate, true},
		{RoleModerator, ActionAdmin, false},
		{RoleAdmin, ActionAdmin, true},
		{Role("bogus"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Fatalf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestCanRespond(t *testing.T) {
	if !CanRespond(RoleAdmin, "u1", "someone-else") {
		t.Fatalf("admin should respond to questions on any post")
	}
	if !CanRespond(RoleModerator, "u1", "u1") {
		t.Fatalf("moderator should respond to questions on own post")
	}
	if CanRespond(RoleModerator, "u1", "u2") {
		t.Fatalf("moderator must not respond to questions on another author's post")
	}
	if CanRespond(RoleMember, "u1", "u1") {
		t.Fatalf("member must not respond even on own post")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("ADMIN"); got != RoleAdmin {
		t.Fatalf("Normalize(ADMIN) = %s", got)
	}
	if got := Normalize("editor"); got != RoleVisitor {
		t.Fatalf("Normalize(unknown) = %s, want VISITOR", got)
	}
}
