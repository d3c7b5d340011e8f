// Package trial implements format comparison campaigns: generate one
// candidate per schedule slot, collect structured ratings, and lock in
// a standard format once the evidence is there.
package trial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/generator"
	"github.com/inkwheel/pressroom/internal/pkg/metrics"
	"github.com/inkwheel/pressroom/internal/queue"
)

// ItemService is the slice of the queue service the trial engine uses.
type ItemService interface {
	Get(ctx context.Context, id string) (*domain.QueueItem, error)
	List(ctx context.Context, filters queue.ItemFilters) ([]*domain.QueueItem, error)
	CreateCandidate(ctx context.Context, item *domain.QueueItem) error
	SetStateTx(ctx context.Context, tx pgx.Tx, id string, from []domain.ItemState, to domain.ItemState) error
	DeleteItemTx(ctx context.Context, tx pgx.Tx, id string) error
}

// Archiver moves reviewed-out items into the content bank within the
// review transaction.
type Archiver interface {
	ArchiveTx(ctx context.Context, tx pgx.Tx, entry *domain.ContentBankEntry) error
}

// Service orchestrates trials, reviews and the lock-in decision.
type Service struct {
	repo      Repository
	items     ItemService
	bank      Archiver
	gen       generator.Generator
	platforms map[domain.ItemKind]domain.Platform
}

// NewService creates a new trial service. platforms maps item kinds to
// the platform generated candidates are queued for.
func NewService(repo Repository, items ItemService, bank Archiver, gen generator.Generator, platforms map[domain.ItemKind]domain.Platform) *Service {
	return &Service{
		repo:      repo,
		items:     items,
		bank:      bank,
		gen:       gen,
		platforms: platforms,
	}
}

// CreateTrialInput holds data for creating a trial.
type CreateTrialInput struct {
	Name     string
	Kind     domain.ItemKind
	Schedule []string
}

// CreateTrial registers a new comparison campaign.
func (s *Service) CreateTrial(ctx context.Context, input CreateTrialInput, createdBy string) (*domain.Trial, error) {
	if !input.Kind.IsValid() {
		return nil, fmt.Errorf("invalid kind: %s", input.Kind)
	}
	if len(input.Schedule) == 0 {
		return nil, ErrEmptySchedule
	}
	for _, format := range input.Schedule {
		if format == "" {
			return nil, ErrEmptySchedule
		}
	}

	trial := &domain.Trial{
		Name:      input.Name,
		Kind:      input.Kind,
		Schedule:  input.Schedule,
		CreatedBy: createdBy,
	}
	if err := s.repo.CreateTrial(ctx, trial); err != nil {
		return nil, fmt.Errorf("create trial: %w", err)
	}
	return trial, nil
}

// Get retrieves a trial by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Trial, error) {
	return s.repo.GetTrial(ctx, id)
}

// List retrieves all trials.
func (s *Service) List(ctx context.Context) ([]*domain.Trial, error) {
	return s.repo.ListTrials(ctx)
}

// Overview is the aggregated view of a trial's progress.
type Overview struct {
	Trial         *domain.Trial
	Stats         []*domain.FormatStats
	PendingItemID *string
	Leader        *string
}

// Overview assembles trial state, per-format aggregates, the live
// candidate (if any) and the current leading format.
func (s *Service) Overview(ctx context.Context, trialID string) (*Overview, error) {
	trial, err := s.repo.GetTrial(ctx, trialID)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.ListFormatStats(ctx, trialID)
	if err != nil {
		return nil, fmt.Errorf("list format stats: %w", err)
	}

	overview := &Overview{
		Trial:  trial,
		Stats:  stats,
		Leader: leader(stats),
	}

	pendingState := domain.ItemStatePendingReview
	pending, err := s.items.List(ctx, queue.ItemFilters{TrialID: &trialID, State: &pendingState, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find pending candidate: %w", err)
	}
	if len(pending) > 0 {
		overview.PendingItemID = &pending[0].ID
	}

	return overview, nil
}

// leader picks the format with the highest overall mean; formats with no
// ratings do not compete. Ties go to the higher share rate.
func leader(stats []*domain.FormatStats) *string {
	var best *domain.FormatStats
	var bestMean float64
	for _, candidate := range stats {
		mean, ok := candidate.OverallMean()
		if !ok {
			continue
		}
		switch {
		case best == nil,
			mean > bestMean,
			mean == bestMean && candidate.ShareRate() > best.ShareRate():
			best = candidate
			bestMean = mean
		}
	}
	if best == nil {
		return nil
	}
	return &best.Format
}

// ReviewInput holds one operator review of a pending candidate.
type ReviewInput struct {
	Scores         map[string]int
	WouldShare     bool
	WhatWorked     string
	WhatDidnt      string
	Notes          string
	Decision       domain.ReviewDecision
	DecisionReason string
	Topic          string
	UsableParts    domain.UsableParts
}

// SubmitReview records a rating and applies its decision in a single
// transaction: the rating row, the folded aggregates, the item's fate
// and the step advance land together or not at all.
func (s *Service) SubmitReview(ctx context.Context, itemID string, input ReviewInput, createdBy string) (*domain.Rating, error) {
	if err := validateReview(input); err != nil {
		return nil, err
	}

	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.State != domain.ItemStatePendingReview {
		return nil, ErrNotPendingReview
	}
	if item.TrialID == nil || item.Format == nil {
		return nil, ErrNotTrialItem
	}

	trial, err := s.repo.GetTrial(ctx, *item.TrialID)
	if err != nil {
		return nil, err
	}

	rating := &domain.Rating{
		ItemID:         item.ID,
		TrialID:        trial.ID,
		Format:         *item.Format,
		Scores:         input.Scores,
		WouldShare:     input.WouldShare,
		WhatWorked:     input.WhatWorked,
		WhatDidnt:      input.WhatDidnt,
		Notes:          input.Notes,
		Decision:       input.Decision,
		DecisionReason: input.DecisionReason,
		CreatedBy:      createdBy,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := s.repo.InsertRatingTx(ctx, tx, rating); err != nil {
		return nil, fmt.Errorf("insert rating: %w", err)
	}

	stats, err := s.repo.GetFormatStatsTx(ctx, tx, trial.ID, rating.Format)
	if err != nil {
		return nil, fmt.Errorf("load format stats: %w", err)
	}
	stats.Fold(rating)
	if err := s.repo.UpsertFormatStatsTx(ctx, tx, stats); err != nil {
		return nil, fmt.Errorf("save format stats: %w", err)
	}

	if err := s.applyDecisionTx(ctx, tx, item, rating, input, createdBy); err != nil {
		return nil, err
	}

	if rating.Decision.AdvancesStep() {
		if err := s.repo.AdvanceStepTx(ctx, tx, trial.ID, trial.CurrentStep); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	metrics.RecordRating(string(rating.Decision))
	return rating, nil
}

func (s *Service) applyDecisionTx(ctx context.Context, tx pgx.Tx, item *domain.QueueItem, rating *domain.Rating, input ReviewInput, createdBy string) error {
	from := []domain.ItemState{domain.ItemStatePendingReview}

	switch rating.Decision {
	case domain.DecisionApprove:
		return s.items.SetStateTx(ctx, tx, item.ID, from, domain.ItemStateApproved)
	case domain.DecisionRework:
		return s.items.SetStateTx(ctx, tx, item.ID, from, domain.ItemStateReworked)
	case domain.DecisionSalvage, domain.DecisionKill:
		decision := domain.BankDecisionSalvaged
		if rating.Decision == domain.DecisionKill {
			decision = domain.BankDecisionKilled
		}
		entry := &domain.ContentBankEntry{
			OriginItemID: item.ID,
			Topic:        bankTopic(item, input.Topic),
			Kind:         item.Kind,
			Format:       item.Format,
			Payload:      item.Payload,
			Decision:     decision,
			Reason:       rating.DecisionReason,
			UsableParts:  input.UsableParts,
			CreatedBy:    createdBy,
		}
		if err := s.bank.ArchiveTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("archive to content bank: %w", err)
		}
		return s.items.DeleteItemTx(ctx, tx, item.ID)
	}
	return ErrInvalidDecision
}

func bankTopic(item *domain.QueueItem, explicit string) string {
	switch {
	case explicit != "":
		return explicit
	case item.Payload.Title != "":
		return item.Payload.Title
	}
	return item.Payload.SourceMaterial
}

func validateReview(input ReviewInput) error {
	if !input.Decision.IsValid() {
		return ErrInvalidDecision
	}
	if input.DecisionReason == "" {
		return ErrDecisionReasonRequired
	}
	for dim, value := range input.Scores {
		if !domain.IsRatingDimension(dim) || value < 1 || value > 5 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidScore, dim, value)
		}
	}
	return nil
}

// Standardize locks the trial onto one format. The format must be in the
// schedule and carry at least one rating. Single assignment: a second
// call fails and the first value stands.
func (s *Service) Standardize(ctx context.Context, trialID, format string) (*domain.Trial, error) {
	trial, err := s.repo.GetTrial(ctx, trialID)
	if err != nil {
		return nil, err
	}
	if trial.IsStandardized() {
		return nil, ErrAlreadyStandardized
	}
	if !trial.HasFormat(format) {
		return nil, ErrUnknownFormat
	}

	stats, err := s.repo.ListFormatStats(ctx, trialID)
	if err != nil {
		return nil, fmt.Errorf("list format stats: %w", err)
	}
	rated := false
	for _, entry := range stats {
		if entry.Format == format && entry.Count > 0 {
			rated = true
			break
		}
	}
	if !rated {
		return nil, ErrNoRatings
	}

	if err := s.repo.Standardize(ctx, trialID, format); err != nil {
		return nil, err
	}

	slog.Info("trial standardized", "trial_id", trialID, "format", format)
	return s.repo.GetTrial(ctx, trialID)
}

// EnsureCandidates walks active trials and generates a candidate for any
// trial whose current schedule slot has no live item. Called by the
// scheduler tick; safe to call repeatedly.
func (s *Service) EnsureCandidates(ctx context.Context) error {
	trials, err := s.repo.ListTrials(ctx)
	if err != nil {
		return fmt.Errorf("list trials: %w", err)
	}

	for _, trial := range trials {
		format, ok := trial.NextFormat()
		if !ok {
			continue
		}

		live, err := s.hasLiveCandidate(ctx, trial.ID)
		if err != nil {
			return err
		}
		if live {
			continue
		}

		if err := s.generateCandidate(ctx, trial, format); err != nil {
			if errors.Is(err, generator.ErrDisabled) {
				slog.Debug("generator disabled, skipping trial candidates")
				return nil
			}
			slog.Error("failed to generate trial candidate",
				"trial_id", trial.ID, "format", format, "error", err)
		}
	}
	return nil
}

func (s *Service) hasLiveCandidate(ctx context.Context, trialID string) (bool, error) {
	pendingState := domain.ItemStatePendingReview
	items, err := s.items.List(ctx, queue.ItemFilters{TrialID: &trialID, State: &pendingState, Limit: 1})
	if err != nil {
		return false, fmt.Errorf("find live candidate: %w", err)
	}
	return len(items) > 0, nil
}

func (s *Service) generateCandidate(ctx context.Context, trial *domain.Trial, format string) error {
	platform, ok := s.platforms[trial.Kind]
	if !ok {
		return fmt.Errorf("no candidate platform configured for kind %s", trial.Kind)
	}

	payload, err := s.gen.Generate(ctx, generator.Input{
		Kind:     trial.Kind,
		Platform: platform,
		Format:   format,
	})
	if err != nil {
		return err
	}

	item := &domain.QueueItem{
		Platform:  platform,
		Kind:      trial.Kind,
		Payload:   *payload,
		Format:    &format,
		TrialID:   &trial.ID,
		CreatedBy: trial.CreatedBy,
	}
	if err := s.items.CreateCandidate(ctx, item); err != nil {
		return err
	}

	slog.Info("trial candidate generated",
		"trial_id", trial.ID, "item_id", item.ID, "format", format, "step", trial.CurrentStep)
	return nil
}
