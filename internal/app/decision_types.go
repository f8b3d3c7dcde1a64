package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"letterflow/internal/lifecycle"
	"letterflow/internal/rbac"
	"letterflow/internal/store"
	"letterflow/internal/util"
)

// DecisionTypeInput creates or patches a decision type. Nil fields are left
// unchanged on update.
type DecisionTypeInput struct {
	Title               *string `json:"title"`
	Sector              *string `json:"sector"`
	SupervisorID        *string `json:"supervisorId"`
	IsPresidentDecision *bool   `json:"isPresidentDecision"`
}

func (s *Service) DecisionTypes(ctx context.Context, current Session) ([]store.DecisionType, error) {
	if !s.Can(current.Role, rbac.ActionRead) {
		return nil, forbidden()
	}
	return s.store.ListDecisionTypes(ctx)
}

func (s *Service) GetDecisionType(ctx context.Context, current Session, id string) (store.DecisionType, error) {
	if !s.Can(current.Role, rbac.ActionRead) {
		return store.DecisionType{}, forbidden()
	}
	return s.store.GetDecisionType(ctx, id)
}

func (s *Service) CreateDecisionType(ctx context.Context, current Session, input DecisionTypeInput) (store.DecisionType, error) {
	if !s.Can(current.Role, rbac.ActionAdmin) {
		return store.DecisionType{}, forbidden()
	}
	item := store.DecisionType{ID: util.NewID("dt")}
	if err := s.applyDecisionType(ctx, &item, input); err != nil {
		return store.DecisionType{}, err
	}
	if item.Title == "" {
		return store.DecisionType{}, validationError("title", "title is required")
	}
	if item.Sector == "" {
		return store.DecisionType{}, validationError("sector", "sector is required")
	}
	if err := s.store.InsertDecisionType(ctx, item); err != nil {
		return store.DecisionType{}, err
	}
	s.logger.Info("decision type created", zap.String("decision_type_id", item.ID), zap.String("actor_id", current.UserID))
	return s.store.GetDecisionType(ctx, item.ID)
}

// UpdateDecisionType patches a decision type. Letters follow the new routing
// immediately since their supervisor and sector are read through the type.
func (s *Service) UpdateDecisionType(ctx context.Context, current Session, id string, input DecisionTypeInput) (store.DecisionType, error) {
	if !s.Can(current.Role, rbac.ActionAdmin) {
		return store.DecisionType{}, forbidden()
	}
	item, err := s.store.GetDecisionType(ctx, id)
	if err != nil {
		return store.DecisionType{}, err
	}
	previousSector := item.Sector
	if err := s.applyDecisionType(ctx, &item, input); err != nil {
		return store.DecisionType{}, err
	}
	if item.Title == "" {
		return store.DecisionType{}, validationError("title", "title cannot be blank")
	}
	if item.Sector == "" {
		return store.DecisionType{}, validationError("sector", "sector cannot be blank")
	}
	if err := s.store.UpdateDecisionType(ctx, item); err != nil {
		return store.DecisionType{}, err
	}
	s.logger.Info("decision type updated", zap.String("decision_type_id", item.ID), zap.String("actor_id", current.UserID))
	if item.Sector != previousSector {
		s.reindexDecisionType(ctx, item.ID)
	}
	return s.store.GetDecisionType(ctx, item.ID)
}

// DeleteDecisionType removes a type no letter references.
func (s *Service) DeleteDecisionType(ctx context.Context, current Session, id string) error {
	if !s.Can(current.Role, rbac.ActionAdmin) {
		return forbidden()
	}
	if err := s.store.DeleteDecisionType(ctx, id); err != nil {
		return err
	}
	s.logger.Info("decision type deleted", zap.String("decision_type_id", id), zap.String("actor_id", current.UserID))
	return nil
}

func (s *Service) applyDecisionType(ctx context.Context, item *store.DecisionType, input DecisionTypeInput) error {
	if input.Title != nil {
		item.Title = strings.TrimSpace(*input.Title)
	}
	if input.Sector != nil {
		item.Sector = strings.TrimSpace(*input.Sector)
	}
	if input.IsPresidentDecision != nil {
		item.IsPresidentDecision = *input.IsPresidentDecision
	}
	if input.SupervisorID == nil {
		return nil
	}
	supervisorID := strings.TrimSpace(*input.SupervisorID)
	if supervisorID != "" {
		user, err := s.store.GetUserByID(ctx, supervisorID)
		if isNotFound(err) {
			return validationError("supervisorId", "unknown user")
		}
		if err != nil {
			return err
		}
		if rbac.Normalize(user.Role) != lifecycle.RoleSupervisor || !user.Active {
			return validationError("supervisorId", fmt.Sprintf("%s is not an active supervisor", user.Username))
		}
	}
	item.SupervisorID = supervisorID
	return nil
}

// reindexDecisionType refreshes the search records of every letter of a type.
func (s *Service) reindexDecisionType(ctx context.Context, id string) {
	if s.search == nil {
		return
	}
	for offset := 0; ; offset += maxPageSize {
		letters, _, err := s.store.ListLetters(ctx, store.LetterFilter{DecisionTypeID: id, Limit: maxPageSize, Offset: offset})
		if err != nil {
			s.logger.Warn("reindex decision type", zap.String("decision_type_id", id), zap.Error(err))
			return
		}
		for _, letter := range letters {
			s.index(letter)
		}
		if len(letters) < maxPageSize {
			return
		}
	}
}
