// Package policy decides which user fields an actor may mutate.
// Every function here is pure: no I/O, no logging, no shared state.
package policy

import (
	"strconv"
	"strings"

	"github.com/prn-tf/luma-identity/internal/domain"
)

// Class is the access class of a user field.
type Class int

const (
	Open Class = iota
	ReadOnly
	Sensitive
	Staff
	RootGated
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ReadOnly:
		return "ReadOnly"
	case Sensitive:
		return "Sensitive"
	case Staff:
		return "Staff"
	case RootGated:
		return "RootGated"
	default:
		return "Open"
	}
}

var fieldClasses = map[string]Class{
	domain.FieldUID:          ReadOnly,
	domain.FieldRegisteredIP: ReadOnly,
	domain.FieldJoinDate:     ReadOnly,
	domain.FieldLastVisit:    ReadOnly,
	domain.FieldLastActive:   ReadOnly,
	domain.FieldLastIP:       ReadOnly,
	domain.FieldPassword:     Sensitive,
	domain.FieldEmail:        Sensitive,
	domain.FieldGID:          Staff,
	domain.FieldUsername:     Staff,
}

// Classify returns the static access class of a field.
// Unknown fields are Open; callers validate field names separately.
func Classify(field string) Class {
	if c, ok := fieldClasses[field]; ok {
		return c
	}
	return Open
}

// ClassifyValue refines Classify with the attempted value: assigning the
// root group to gid is RootGated.
func ClassifyValue(field, value string) Class {
	if field == domain.FieldGID && IsRootValue(value) {
		return RootGated
	}
	return Classify(field)
}

// Decision is the outcome of Decide.
type Decision struct {
	Allowed bool
	Reason  domain.DenyReason
}

var allow = Decision{Allowed: true}

func deny(reason domain.DenyReason) Decision {
	return Decision{Reason: reason}
}

// Decide evaluates one field assignment for actor. override is granted only
// by re-authenticated workflows and lifts the Sensitive restriction.
//
// Rules apply in a fixed order: read-only, sensitive, staff, root.
// A nil actor holds no capabilities.
func Decide(actor *domain.Actor, field, value string, override bool) Decision {
	var staffUser, staffRoot bool
	if actor != nil {
		staffUser, staffRoot = actor.StaffUser, actor.StaffRoot
	}

	class := Classify(field)

	if class == ReadOnly {
		return deny(domain.ReasonReadOnly)
	}
	if class == Sensitive && !override && !staffUser {
		return deny(domain.ReasonSensitive)
	}
	if class == Staff && !staffUser {
		return deny(domain.ReasonStaffOnly)
	}
	if field == domain.FieldGID && IsRootValue(value) && !staffRoot {
		return deny(domain.ReasonRootOnly)
	}
	return allow
}

// IsRootValue reports whether value denotes the root group id.
// The comparison is numeric so "01" and " 1" are treated as root too.
func IsRootValue(value string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return err == nil && n == domain.RootGroupID
}
