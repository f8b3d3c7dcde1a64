package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"letterflow/internal/authpw"
	"letterflow/internal/lifecycle"
	"letterflow/internal/store"
)

type seedUser struct {
	id, username, fullName, email, role, sector string
}

var seedUsers = []seedUser{
	{"usr_preparer", "preparer", "Rana Haddad", "preparer@letterflow.local", string(lifecycle.RolePreparer), "Academic Affairs"},
	{"usr_supervisor", "supervisor", "Samir Khoury", "supervisor@letterflow.local", string(lifecycle.RoleSupervisor), "Academic Affairs"},
	{"usr_president", "president", "Huda Nasser", "president@letterflow.local", string(lifecycle.RolePresident), ""},
	{"usr_admin", "admin", "System Administrator", "admin@letterflow.local", string(lifecycle.RoleAdmin), ""},
}

var seedDecisionTypes = []store.DecisionType{
	{ID: "dt_academic_calendar", Title: "Academic calendar change", Sector: "Academic Affairs", SupervisorID: "usr_supervisor"},
	{ID: "dt_staff_appointment", Title: "Staff appointment", Sector: "Academic Affairs", SupervisorID: "usr_supervisor"},
	{ID: "dt_university_policy", Title: "University policy", Sector: "Presidency", IsPresidentDecision: true},
}

// Bootstrap seeds demo accounts and decision types into an empty database.
// Every demo account uses password as its password.
func (s *Service) Bootstrap(ctx context.Context, password string) error {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := authpw.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	for _, seed := range seedUsers {
		if err := s.store.CreateUser(ctx, store.User{
			ID:           seed.id,
			Username:     seed.username,
			FullName:     seed.fullName,
			Email:        seed.email,
			PasswordHash: hash,
			Role:         seed.role,
			Sector:       seed.sector,
			Active:       true,
		}); err != nil {
			return fmt.Errorf("seed user %s: %w", seed.username, err)
		}
	}
	for _, item := range seedDecisionTypes {
		if err := s.store.InsertDecisionType(ctx, item); err != nil {
			return fmt.Errorf("seed decision type %s: %w", item.ID, err)
		}
	}
	s.logger.Info("seeded demo data", zap.Int("users", len(seedUsers)), zap.Int("decision_types", len(seedDecisionTypes)))
	return nil
}
