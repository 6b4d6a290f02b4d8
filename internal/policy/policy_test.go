package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prn-tf/luma-identity/internal/domain"
)

var (
	member = &domain.Actor{UID: 10, GID: 3, CanMsg: true, CanSubmit: true, CanComment: true}
	staff  = &domain.Actor{UID: 20, GID: 2, StaffUser: true, CanMsg: true, CanSubmit: true, CanComment: true}
	root   = &domain.Actor{UID: 1, GID: 1, StaffUser: true, StaffRoot: true, CanMsg: true, CanSubmit: true, CanComment: true}
)

func TestClassify(t *testing.T) {
	tests := map[string]Class{
		"uid":           ReadOnly,
		"registered_ip": ReadOnly,
		"join_date":     ReadOnly,
		"last_visit":    ReadOnly,
		"last_active":   ReadOnly,
		"last_ip":       ReadOnly,
		"password":      Sensitive,
		"email":         Sensitive,
		"gid":           Staff,
		"username":      Staff,
		"title":         Open,
		"can_msg":       Open,
		"nonexistent":   Open,
	}
	for field, want := range tests {
		assert.Equal(t, want, Classify(field), field)
	}

	assert.Equal(t, RootGated, ClassifyValue("gid", "1"))
	assert.Equal(t, Staff, ClassifyValue("gid", "2"))
	assert.Equal(t, Open, ClassifyValue("title", "1"))
}

func TestDecideMatrix(t *testing.T) {
	type expect struct {
		member, staff, root domain.DenyReason
	}
	ok := domain.DenyReason("")

	tests := []struct {
		field    string
		value    string
		override bool
		want     expect
	}{
		{"registered_ip", "1.2.3.4", false, expect{domain.ReasonReadOnly, domain.ReasonReadOnly, domain.ReasonReadOnly}},
		{"join_date", "x", true, expect{domain.ReasonReadOnly, domain.ReasonReadOnly, domain.ReasonReadOnly}},
		{"last_visit", "x", false, expect{domain.ReasonReadOnly, domain.ReasonReadOnly, domain.ReasonReadOnly}},
		{"last_active", "x", false, expect{domain.ReasonReadOnly, domain.ReasonReadOnly, domain.ReasonReadOnly}},
		{"last_ip", "x", true, expect{domain.ReasonReadOnly, domain.ReasonReadOnly, domain.ReasonReadOnly}},
		{"uid", "99", true, expect{domain.ReasonReadOnly, domain.ReasonReadOnly, domain.ReasonReadOnly}},
		{"password", "h", false, expect{domain.ReasonSensitive, ok, ok}},
		{"password", "h", true, expect{ok, ok, ok}},
		{"email", "a@x.com", false, expect{domain.ReasonSensitive, ok, ok}},
		{"email", "a@x.com", true, expect{ok, ok, ok}},
		{"username", "bob", false, expect{domain.ReasonStaffOnly, ok, ok}},
		{"username", "bob", true, expect{domain.ReasonStaffOnly, ok, ok}},
		{"gid", "2", false, expect{domain.ReasonStaffOnly, ok, ok}},
		{"gid", "1", false, expect{domain.ReasonStaffOnly, domain.ReasonRootOnly, ok}},
		{"gid", "01", false, expect{domain.ReasonStaffOnly, domain.ReasonRootOnly, ok}},
		{"title", "hi", false, expect{ok, ok, ok}},
		{"can_comment", "false", false, expect{ok, ok, ok}},
	}

	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			for _, c := range []struct {
				name  string
				actor *domain.Actor
				want  domain.DenyReason
			}{
				{"member", member, tt.want.member},
				{"staff", staff, tt.want.staff},
				{"root", root, tt.want.root},
			} {
				got := Decide(c.actor, tt.field, tt.value, tt.override)
				assert.Equal(t, c.want == ok, got.Allowed, c.name)
				assert.Equal(t, c.want, got.Reason, c.name)
			}
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	first := Decide(staff, "gid", "1", false)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Decide(staff, "gid", "1", false))
	}
}

func TestDecideNilActor(t *testing.T) {
	assert.Equal(t, domain.ReasonSensitive, Decide(nil, "email", "a@x.com", false).Reason)
	assert.True(t, Decide(nil, "email", "a@x.com", true).Allowed)
	assert.Equal(t, domain.ReasonStaffOnly, Decide(nil, "gid", "1", false).Reason)
}

func TestIsRootValue(t *testing.T) {
	assert.True(t, IsRootValue("1"))
	assert.True(t, IsRootValue(" 1 "))
	assert.False(t, IsRootValue("10"))
	assert.False(t, IsRootValue("root"))
	assert.False(t, IsRootValue(""))
}
