package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

// GoalService manages savings goals. Progress changes only through the
// ContributionTransactor.
type GoalService struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

func NewGoalService(st store.Store) *GoalService {
	return &GoalService{
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create stores a new goal with no progress.
func (s *GoalService) Create(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	stamp := s.now().UTC()
	g.ID = s.newID()
	g.CurrentAmount = core.Zero
	g.IsCompleted = false
	g.CreatedAt = stamp
	g.UpdatedAt = stamp

	if err := s.store.CreateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (s *GoalService) Get(ctx context.Context, ownerID, id string) (core.Goal, error) {
	return s.store.GetGoal(ctx, ownerID, id)
}

func (s *GoalService) List(ctx context.Context, ownerID string) ([]core.Goal, error) {
	return s.store.ListGoals(ctx, ownerID)
}

// Contributions lists the contributions of a goal the owner holds.
func (s *GoalService) Contributions(ctx context.Context, ownerID, goalID string) ([]core.Contribution, error) {
	if _, err := s.store.GetGoal(ctx, ownerID, goalID); err != nil {
		return nil, err
	}
	out, err := s.store.ListContributions(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return out, nil
}
