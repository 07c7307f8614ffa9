package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestActor_CanAccessCompany(t *testing.T) {
	tests := []struct {
		name    string
		actor   *Actor
		company string
		want    bool
	}{
		{"nil actor", nil, "c1", false},
		{"super admin", &Actor{UserType: TypeSuperAdmin}, "c1", true},
		{"system", SystemActor(), "c1", true},
		{"own company", &Actor{UserType: TypeCompanyAdmin, CompanyID: strPtr("c1")}, "c1", true},
		{"other company", &Actor{UserType: TypeCompanyAdmin, CompanyID: strPtr("c2")}, "c1", false},
		{"no company", &Actor{UserType: TypeCompanyAdmin}, "c1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.CanAccessCompany(tt.company))
		})
	}
}

func TestActor_CompanyScope(t *testing.T) {
	assert.Nil(t, (&Actor{UserType: TypeSuperAdmin}).CompanyScope())
	assert.Equal(t, "c1", *(&Actor{UserType: TypeCompanyAdmin, CompanyID: strPtr("c1")}).CompanyScope())
	assert.Equal(t, "", *(&Actor{UserType: TypeCompanyAdmin}).CompanyScope())
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	a := &Actor{ID: "u1", Username: "demo", UserType: TypeCompanyAdmin}
	ctx := WithActor(context.Background(), a)
	assert.Same(t, a, FromContext(ctx))
	assert.True(t, SystemActor().IsSystem())
	assert.False(t, a.IsSystem())
}
