// Package queue implements the content queue and its publish lifecycle.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/pkg/metrics"
	"github.com/inkwheel/pressroom/internal/publisher"
	"github.com/inkwheel/pressroom/internal/quota"
	"github.com/inkwheel/pressroom/internal/voice"
)

// FormatResolver reports the locked standard format for an item kind,
// if a trial of that kind has standardized.
type FormatResolver interface {
	StandardFormat(ctx context.Context, kind domain.ItemKind) (string, bool, error)
}

// Service orchestrates queue item state transitions. Publishes consult
// the quota ledger before calling the gateway and record outcomes; all
// per-item actions are serialized through non-blocking item locks.
type Service struct {
	repo    Repository
	ledger  *quota.Ledger
	gateway publisher.Gateway
	checker voice.Checker
	caps    *domain.Capabilities
	formats FormatResolver
	locks   *itemLocks
	now     func() time.Time
}

// NewService creates a new queue service.
func NewService(repo Repository, ledger *quota.Ledger, gateway publisher.Gateway, checker voice.Checker, caps *domain.Capabilities, formats FormatResolver) *Service {
	return &Service{
		repo:    repo,
		ledger:  ledger,
		gateway: gateway,
		checker: checker,
		caps:    caps,
		formats: formats,
		locks:   newItemLocks(),
		now:     time.Now,
	}
}

// CreateItemInput holds data for creating a queue item.
type CreateItemInput struct {
	Platform domain.Platform
	Kind     domain.ItemKind
	Payload  domain.Payload
	Format   string
}

// Create inserts a new draft item. An empty format defaults to the kind's
// locked standard format when one exists; an explicit format overrides.
func (s *Service) Create(ctx context.Context, input CreateItemInput, createdBy string) (*domain.QueueItem, error) {
	if !input.Platform.IsValid() {
		return nil, fmt.Errorf("invalid platform: %s", input.Platform)
	}
	if !input.Kind.IsValid() {
		return nil, fmt.Errorf("invalid kind: %s", input.Kind)
	}

	item := &domain.QueueItem{
		Platform:  input.Platform,
		Kind:      input.Kind,
		Payload:   input.Payload,
		State:     domain.ItemStateDraft,
		CreatedBy: createdBy,
	}
	if input.Format != "" {
		format := input.Format
		item.Format = &format
	} else if format, ok, err := s.formats.StandardFormat(ctx, input.Kind); err != nil {
		return nil, fmt.Errorf("resolve standard format: %w", err)
	} else if ok {
		item.Format = &format
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

// Get retrieves an item by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.QueueItem, error) {
	return s.repo.GetItem(ctx, id)
}

// List retrieves items with optional filters.
func (s *Service) List(ctx context.Context, filters ItemFilters) ([]*domain.QueueItem, error) {
	return s.repo.ListItems(ctx, filters)
}

// UpdateItemInput holds editable fields. Nil means leave unchanged.
type UpdateItemInput struct {
	Text           *string
	Title          *string
	Caption        *string
	SelectedOption *int
	AssetComplete  *bool
}

// editableStates are the states in which operators may modify content.
var editableStates = []domain.ItemState{
	domain.ItemStateDraft,
	domain.ItemStateReady,
	domain.ItemStateFailed,
}

// Update applies operator edits to an item's content and selection.
func (s *Service) Update(ctx context.Context, id string, input UpdateItemInput) (*domain.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if !stateIn(item.State, editableStates) {
		return nil, ErrInvalidTransition
	}

	if input.Text != nil {
		item.Payload.Text = *input.Text
	}
	if input.Title != nil {
		item.Payload.Title = *input.Title
	}
	if input.Caption != nil {
		item.Payload.Caption = *input.Caption
	}
	if input.SelectedOption != nil {
		idx := *input.SelectedOption
		if idx < 0 || idx >= len(item.Payload.Options) {
			return nil, ErrInvalidSelection
		}
		item.SelectedOption = &idx
	}
	if input.AssetComplete != nil {
		item.AssetComplete = *input.AssetComplete
	}

	if err := s.repo.UpdateItem(ctx, item, editableStates); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes an item. Posted and in-review items cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !s.locks.TryLock(id) {
		return ErrConflict
	}
	defer s.locks.Unlock(id)

	return s.repo.DeleteItemInState(ctx, id, []domain.ItemState{
		domain.ItemStateDraft,
		domain.ItemStateReady,
		domain.ItemStateFailed,
	})
}

// MarkReady transitions draft -> ready once all publish preconditions
// hold: the manual asset step is complete, exactly one candidate option
// is resolved, and the content fits the platform's character limit.
func (s *Service) MarkReady(ctx context.Context, id string) (*domain.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if item.State != domain.ItemStateDraft {
		return nil, ErrInvalidTransition
	}
	if err := s.validatePublishable(item); err != nil {
		return nil, err
	}

	if err := s.repo.SetState(ctx, id, []domain.ItemState{domain.ItemStateDraft}, domain.ItemStateReady); err != nil {
		return nil, err
	}

	item.State = domain.ItemStateReady
	return item, nil
}

func (s *Service) validatePublishable(item *domain.QueueItem) error {
	if !item.AssetComplete {
		return ErrAssetIncomplete
	}

	opt, ok := item.ResolvedOption()
	if !ok {
		return ErrNoOptionSelected
	}

	limit := s.caps.Get(item.Platform).CharLimit
	if limit > 0 && len([]rune(opt.Text)) > limit {
		return fmt.Errorf("%w: %d > %d", ErrCharLimitExceeded, len([]rune(opt.Text)), limit)
	}
	return nil
}

// publishableStates are the states a publish attempt may start from.
var publishableStates = []domain.ItemState{
	domain.ItemStateReady,
	domain.ItemStateFailed,
}

// Publish attempts to publish the item through the gateway. Retries from
// failed reuse the same path. Quota is reserved before the gateway call
// and committed only on confirmed success, in the same transaction as
// the posted transition. The dispatched gateway call is never cancelled.
func (s *Service) Publish(ctx context.Context, id string) (*domain.QueueItem, error) {
	if !s.locks.TryLock(id) {
		return nil, ErrConflict
	}
	defer s.locks.Unlock(id)

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if !item.State.IsPublishable() {
		return nil, ErrInvalidTransition
	}
	if s.caps.Get(item.Platform).PublishMode != domain.PublishModeAuto {
		return nil, ErrManualPlatform
	}
	if err := s.validatePublishable(item); err != nil {
		return nil, err
	}

	day := domain.QuotaDayOf(s.now())
	if err := s.ledger.TryReserve(ctx, item.Platform, day); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			metrics.RecordPublish(string(item.Platform), "quota_exceeded")
		}
		return nil, err
	}

	opt, _ := item.ResolvedOption()
	req := publisher.Request{
		Kind:     item.Kind,
		Text:     opt.Text,
		Title:    item.Payload.Title,
		Caption:  item.Payload.Caption,
		Metadata: item.Payload.Metadata,
	}

	start := s.now()
	postURL, gwErr := s.gateway.Publish(ctx, item.Platform, req)
	metrics.RecordPublishDuration(string(item.Platform), time.Since(start))

	if gwErr != nil {
		s.ledger.Release(item.Platform, day)
		if markErr := s.repo.MarkFailed(ctx, id, gwErr.Error()); markErr != nil {
			slog.Error("failed to record gateway error", "item_id", id, "error", markErr)
		}
		metrics.RecordPublish(string(item.Platform), "gateway_error")
		return nil, fmt.Errorf("%w: %s", ErrGatewayFailure, gwErr.Error())
	}

	if err := s.confirmPosted(ctx, item, postURL, day); err != nil {
		return nil, err
	}

	metrics.RecordPublish(string(item.Platform), "success")
	return s.repo.GetItem(ctx, id)
}

// MarkPosted confirms an out-of-band publish on a manual-mode platform.
// Consumes quota exactly like an automatic publish.
func (s *Service) MarkPosted(ctx context.Context, id, postURL string) (*domain.QueueItem, error) {
	if !s.locks.TryLock(id) {
		return nil, ErrConflict
	}
	defer s.locks.Unlock(id)

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if !item.State.IsPublishable() {
		return nil, ErrInvalidTransition
	}
	if s.caps.Get(item.Platform).PublishMode != domain.PublishModeManual {
		return nil, ErrAutoPlatform
	}

	day := domain.QuotaDayOf(s.now())
	if err := s.ledger.TryReserve(ctx, item.Platform, day); err != nil {
		return nil, err
	}

	if err := s.confirmPosted(ctx, item, postURL, day); err != nil {
		return nil, err
	}

	metrics.RecordPublish(string(item.Platform), "success")
	return s.repo.GetItem(ctx, id)
}

// confirmPosted applies the posted transition and the quota commit as
// one transaction. It owns the caller's reservation: the deferred
// Release fires exactly once after the transaction settles, so a failed
// increment or commit cannot strand a slot, and a success cannot drop
// the slot before the durable count is visible.
func (s *Service) confirmPosted(ctx context.Context, item *domain.QueueItem, postURL string, day domain.QuotaDay) error {
	defer s.ledger.Release(item.Platform, day)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := s.repo.MarkPostedTx(ctx, tx, item.ID, postURL, publishableStates); err != nil {
		if errors.Is(err, ErrConflict) {
			slog.Warn("item changed during publish, post went out but transition lost",
				"item_id", item.ID, "post_url", postURL)
		}
		return err
	}

	if err := s.ledger.Commit(ctx, tx, item.Platform, day); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateCandidate inserts a trial candidate in pending_review. Called by
// the trial engine, which sets Format and TrialID before insertion.
func (s *Service) CreateCandidate(ctx context.Context, item *domain.QueueItem) error {
	item.State = domain.ItemStatePendingReview
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return fmt.Errorf("create trial candidate: %w", err)
	}
	return nil
}

// SetStateTx exposes a guarded state transition inside a caller-owned
// transaction, so review decisions commit atomically with their rating.
func (s *Service) SetStateTx(ctx context.Context, tx pgx.Tx, id string, from []domain.ItemState, to domain.ItemState) error {
	return s.repo.SetStateTx(ctx, tx, id, from, to)
}

// DeleteItemTx removes a pending-review item inside a caller-owned
// transaction when its review decision moves it to the content bank.
func (s *Service) DeleteItemTx(ctx context.Context, tx pgx.Tx, id string) error {
	return s.repo.DeleteItemTx(ctx, tx, id, []domain.ItemState{domain.ItemStatePendingReview})
}

// Check runs the advisory voice/quality checker on the item's resolved
// content. Never blocks or alters the lifecycle.
func (s *Service) Check(ctx context.Context, id, profile string) (*voice.Report, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.checker.Check(ctx, voice.Input{
		Content:      item.PublishText(),
		VoiceProfile: profile,
		Platform:     item.Platform,
	})
}

// MostRecentPosted returns the latest posted item for a platform/kind pair.
func (s *Service) MostRecentPosted(ctx context.Context, platform domain.Platform, kind domain.ItemKind) (*domain.QueueItem, error) {
	return s.repo.MostRecentPosted(ctx, platform, kind)
}

// QueueStats returns item counts by state for metrics collection.
func (s *Service) QueueStats(ctx context.Context) (map[domain.ItemState]int, error) {
	return s.repo.CountByState(ctx)
}

func stateIn(state domain.ItemState, states []domain.ItemState) bool {
	for _, candidate := range states {
		if state == candidate {
			return true
		}
	}
	return false
}
