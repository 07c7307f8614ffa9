// Package actor carries the authenticated caller through a request.
//
// The actor replaces any process-wide "current user": handlers read it from
// the request context, services use it to scope queries to a company.
package actor

import (
	"context"
	"fmt"
)

// User types
const (
	TypeSuperAdmin   = "super_admin"
	TypeCompanyAdmin = "company_admin"
	TypeSystem       = "system"
)

const systemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	UserType  string  `json:"user_type"`
	CompanyID *string `json:"company_id,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "anonymous"
	}
	return fmt.Sprintf("%s (%s)", a.Username, a.UserType)
}

// IsSuperAdmin reports whether the actor sees every company.
// The system actor is treated as a super admin.
func (a *Actor) IsSuperAdmin() bool {
	if a == nil {
		return false
	}
	return a.UserType == TypeSuperAdmin || a.UserType == TypeSystem
}

// CanAccessCompany reports whether the actor may read or write data owned
// by companyID.
func (a *Actor) CanAccessCompany(companyID string) bool {
	if a == nil {
		return false
	}
	if a.IsSuperAdmin() {
		return true
	}
	return a.CompanyID != nil && *a.CompanyID == companyID
}

// CompanyScope returns the company filter for list queries, nil meaning
// all companies.
func (a *Actor) CompanyScope() *string {
	if a == nil || a.IsSuperAdmin() {
		return nil
	}
	if a.CompanyID == nil {
		// company admin without a company sees nothing
		empty := ""
		return &empty
	}
	return a.CompanyID
}

type contextKey struct{}

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present.
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(contextKey{}).(*Actor)
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, a)
}

// SystemActor returns an Actor representing the system itself.
// Use this for hardware ingestion and scheduled jobs.
func SystemActor() *Actor {
	return &Actor{
		ID:       systemID,
		Username: "system",
		UserType: TypeSystem,
	}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	return a != nil && a.ID == systemID
}
