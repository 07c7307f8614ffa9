package service

import (
	"context"

	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
)

func requireActor(ctx context.Context) (*actor.Actor, error) {
	a := actor.FromContext(ctx)
	if a == nil {
		return nil, errors.Unauthorized("authentication required")
	}
	return a, nil
}

func requireSuperAdmin(ctx context.Context) (*actor.Actor, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !a.IsSuperAdmin() {
		return nil, errors.Forbidden("super admin access required")
	}
	return a, nil
}

// authorizeBotiquin loads the cabinet and checks the caller may see it.
func authorizeBotiquin(ctx context.Context, store BotiquinStore, id string) (*repository.Botiquin, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	b, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.CanAccessCompany(b.CompanyID) {
		return nil, errors.Forbidden("access denied")
	}
	return b, nil
}

// authorizeMedicine loads the medicine and checks the caller may see it.
// Medicines outside any cabinet belong to no company and are visible to
// super admins only.
func authorizeMedicine(ctx context.Context, store MedicineStore, id string) (*repository.OwnedMedicine, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	m, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.CompanyID == nil {
		if !a.IsSuperAdmin() {
			return nil, errors.Forbidden("access denied")
		}
		return m, nil
	}
	if !a.CanAccessCompany(*m.CompanyID) {
		return nil, errors.Forbidden("access denied")
	}
	return m, nil
}
