package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/pacts/models"
)

// invalidateTimeout bounds the stale signal so a slow cache cannot stall the response.
const invalidateTimeout = 3 * time.Second

// ToggleResult is the authoritative state after a toggle.
type ToggleResult struct {
	CheckInID uint  `json:"check_in_id"`
	PactID    uint  `json:"pact_id"`
	Kudoed    bool  `json:"kudoed"`
	Count     int64 `json:"kudo_count"`
}

// State returns the result as a client-facing KudoState.
func (r ToggleResult) State() models.KudoState {
	return models.KudoState{Kudoed: r.Kudoed, Count: r.Count}
}

// KudoService flips a user's kudo on a check-in.
// There is no lock around the lookup and the write; the unique index on
// (user_id, check_in_id) settles concurrent creates.
type KudoService struct {
	store KudoStore
	inv   Invalidator
	log   *zap.Logger
}

// NewKudoService wires the engine. inv and log may be nil.
func NewKudoService(store KudoStore, inv Invalidator, log *zap.Logger) *KudoService {
	if inv == nil {
		inv = NopInvalidator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KudoService{store: store, inv: inv, log: log}
}

// Toggle creates the caller's kudo on checkInID if absent, or deletes it if present.
// pactID is optional (zero); when given it must be the check-in's pact.
func (s *KudoService) Toggle(ctx context.Context, who *Identity, checkInID, pactID uint) (ToggleResult, error) {
	if who == nil || who.UserID == 0 {
		return ToggleResult{}, ErrUnauthenticated
	}

	ci, err := s.store.FindCheckIn(ctx, checkInID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ToggleResult{}, ErrNotFound
		}
		return ToggleResult{}, storageErr("find check-in", err)
	}
	if ci.UserID == who.UserID {
		return ToggleResult{}, ErrForbidden
	}
	if pactID != 0 && pactID != ci.PactID {
		return ToggleResult{}, ErrPactMismatch
	}

	existing, err := s.store.FindKudo(ctx, who.UserID, ci.ID)
	if err != nil {
		return ToggleResult{}, storageErr("find kudo", err)
	}

	var kudoed bool
	if existing != nil {
		// a concurrent delete may already have removed it; either way it is gone
		if err := s.store.DeleteKudo(ctx, existing.ID); err != nil {
			return ToggleResult{}, storageErr("delete kudo", err)
		}
		kudoed = false
	} else {
		err := s.store.CreateKudo(ctx, &models.Kudo{UserID: who.UserID, CheckInID: ci.ID})
		if err != nil && !isUniqueViolation(err) {
			return ToggleResult{}, storageErr("create kudo", err)
		}
		if err != nil {
			s.log.Debug("kudo create lost race, treating as kudoed",
				zap.Uint("user_id", who.UserID), zap.Uint("check_in_id", ci.ID))
		}
		kudoed = true
	}

	// the write is committed; signal before anything else can fail
	s.markStale(ctx, ci.PactID)

	count, err := s.store.CountKudos(ctx, ci.ID)
	if err != nil {
		return ToggleResult{}, storageErr("count kudos", err)
	}

	return ToggleResult{CheckInID: ci.ID, PactID: ci.PactID, Kudoed: kudoed, Count: count}, nil
}

// markStale signals that the pact page changed. Failures are logged only.
func (s *KudoService) markStale(ctx context.Context, pactID uint) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := s.inv.PactStale(ctx, pactID); err != nil {
		s.log.Warn("pact stale signal failed", zap.Uint("pact_id", pactID), zap.Error(err))
	}
}
