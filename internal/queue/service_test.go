package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/publisher"
	"github.com/inkwheel/pressroom/internal/quota"
	"github.com/inkwheel/pressroom/internal/voice"
)

// mockTx satisfies pgx.Tx for service tests; only Commit and Rollback
// are ever called because the repository is mocked too. Work staged via
// onCommit is applied only when Commit succeeds, mirroring a real
// transaction's visibility rules.
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
	onCommit   []func()
}

func (m *mockTx) Commit(_ context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	for _, apply := range m.onCommit {
		apply()
	}
	return nil
}

func (m *mockTx) Rollback(_ context.Context) error {
	if m.committed {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	return nil
}

// mockRepository implements Repository for testing.
type mockRepository struct {
	mu     sync.Mutex
	items  map[string]*domain.QueueItem
	nextID int

	markPostedErr error
	txCommitErr   error
	lastTx        *mockTx
}

func newMockRepository() *mockRepository {
	return &mockRepository{items: make(map[string]*domain.QueueItem)}
}

func (m *mockRepository) CreateItem(_ context.Context, item *domain.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	item.ID = string(rune('a' + m.nextID - 1))
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *mockRepository) GetItem(_ context.Context, id string) (*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *mockRepository) ListItems(_ context.Context, filters ItemFilters) ([]*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.QueueItem, 0)
	for _, item := range m.items {
		if filters.State != nil && item.State != *filters.State {
			continue
		}
		copied := *item
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockRepository) UpdateItem(_ context.Context, item *domain.QueueItem, fromStates []domain.ItemState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[item.ID]
	if !ok {
		return ErrItemNotFound
	}
	if !containsState(fromStates, stored.State) {
		return ErrConflict
	}
	copied := *item
	copied.State = stored.State
	m.items[item.ID] = &copied
	return nil
}

func (m *mockRepository) DeleteItemInState(_ context.Context, id string, states []domain.ItemState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if !containsState(states, stored.State) {
		return ErrNotDeletable
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepository) DeleteItemTx(_ context.Context, _ pgx.Tx, id string, states []domain.ItemState) error {
	return m.DeleteItemInState(context.Background(), id, states)
}

func (m *mockRepository) SetState(_ context.Context, id string, from []domain.ItemState, to domain.ItemState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if !containsState(from, stored.State) {
		return ErrConflict
	}
	stored.State = to
	return nil
}

func (m *mockRepository) SetStateTx(ctx context.Context, _ pgx.Tx, id string, from []domain.ItemState, to domain.ItemState) error {
	return m.SetState(ctx, id, from, to)
}

func (m *mockRepository) MarkFailed(_ context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	stored.State = domain.ItemStateFailed
	stored.LastError = &errMsg
	return nil
}

func (m *mockRepository) MarkPostedTx(_ context.Context, _ pgx.Tx, id string, postURL string, from []domain.ItemState) error {
	if m.markPostedErr != nil {
		return m.markPostedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[id]
	if !ok {
		return ErrConflict
	}
	if !containsState(from, stored.State) {
		return ErrConflict
	}
	now := time.Now()
	stored.State = domain.ItemStatePosted
	stored.PostURL = &postURL
	stored.LastError = nil
	stored.PostedAt = &now
	return nil
}

func (m *mockRepository) MostRecentPosted(_ context.Context, _ domain.Platform, _ domain.ItemKind) (*domain.QueueItem, error) {
	return nil, ErrItemNotFound
}

func (m *mockRepository) CountByState(_ context.Context) (map[domain.ItemState]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.ItemState]int)
	for _, item := range m.items {
		counts[item.State]++
	}
	return counts, nil
}

func (m *mockRepository) BeginTx(_ context.Context) (pgx.Tx, error) {
	m.lastTx = &mockTx{commitErr: m.txCommitErr}
	return m.lastTx, nil
}

func containsState(states []domain.ItemState, state domain.ItemState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// mockQuotaRepo implements quota.Repository for testing.
type mockQuotaRepo struct {
	mu           sync.Mutex
	counts       map[string]int
	incrementErr error
}

func newMockQuotaRepo() *mockQuotaRepo {
	return &mockQuotaRepo{counts: make(map[string]int)}
}

func (m *mockQuotaRepo) GetCount(_ context.Context, platform domain.Platform, day domain.QuotaDay) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[string(platform)+"|"+string(day)], nil
}

func (m *mockQuotaRepo) Counts(_ context.Context, _ domain.QuotaDay) (map[domain.Platform]int, error) {
	return map[domain.Platform]int{}, nil
}

func (m *mockQuotaRepo) IncrementTx(_ context.Context, tx pgx.Tx, platform domain.Platform, day domain.QuotaDay, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	key := string(platform) + "|" + string(day)
	if m.counts[key] >= limit {
		return 0, quota.ErrQuotaExceeded
	}
	next := m.counts[key] + 1
	if mt, ok := tx.(*mockTx); ok {
		mt.onCommit = append(mt.onCommit, func() {
			m.mu.Lock()
			m.counts[key] = next
			m.mu.Unlock()
		})
		return next, nil
	}
	m.counts[key] = next
	return next, nil
}

// mockGateway implements publisher.Gateway for testing.
type mockGateway struct {
	mu      sync.Mutex
	calls   int
	err     error
	postURL string
}

func (m *mockGateway) Publish(_ context.Context, _ domain.Platform, _ publisher.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.postURL, nil
}

// mockFormats implements FormatResolver for testing.
type mockFormats struct {
	format string
	err    error
}

func (m *mockFormats) StandardFormat(_ context.Context, _ domain.ItemKind) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	return m.format, m.format != "", nil
}

// mockChecker implements voice.Checker for testing.
type mockChecker struct {
	report *voice.Report
}

func (m *mockChecker) Check(_ context.Context, _ voice.Input) (*voice.Report, error) {
	if m.report == nil {
		return nil, voice.ErrDisabled
	}
	return m.report, nil
}

func testCaps(limit int) *domain.Capabilities {
	return domain.NewCapabilities(map[domain.Platform]domain.Capability{
		domain.PlatformBluesky:   {DailyLimit: limit, WarmupLimit: 1, CharLimit: 300, PublishMode: domain.PublishModeAuto},
		domain.PlatformInstagram: {DailyLimit: limit, WarmupLimit: 1, CharLimit: 2200, PublishMode: domain.PublishModeManual},
	}, false)
}

type fixture struct {
	repo      *mockRepository
	quotaRepo *mockQuotaRepo
	gateway   *mockGateway
	formats   *mockFormats
	service   *Service
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	repo := newMockRepository()
	quotaRepo := newMockQuotaRepo()
	gateway := &mockGateway{postURL: "https://bsky.app/post/1"}
	formats := &mockFormats{}
	caps := testCaps(limit)
	ledger := quota.NewLedger(quotaRepo, caps)
	service := NewService(repo, ledger, gateway, &mockChecker{}, caps, formats)
	return &fixture{repo: repo, quotaRepo: quotaRepo, gateway: gateway, formats: formats, service: service}
}

func (f *fixture) readyItem(t *testing.T, platform domain.Platform) *domain.QueueItem {
	t.Helper()
	item := &domain.QueueItem{
		Platform:      platform,
		Kind:          domain.ItemKindPost,
		Payload:       domain.Payload{Text: "hello world"},
		State:         domain.ItemStateReady,
		AssetComplete: true,
	}
	require.NoError(t, f.repo.CreateItem(context.Background(), item))
	return item
}

func TestPublishSuccess(t *testing.T) {
	f := newFixture(t, 5)
	item := f.readyItem(t, domain.PlatformBluesky)

	published, err := f.service.Publish(context.Background(), item.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ItemStatePosted, published.State)
	require.NotNil(t, published.PostURL)
	assert.Equal(t, "https://bsky.app/post/1", *published.PostURL)
	assert.NotNil(t, published.PostedAt)
	assert.Equal(t, 1, f.gateway.calls)
	assert.True(t, f.repo.lastTx.committed)

	count, _ := f.quotaRepo.GetCount(context.Background(), domain.PlatformBluesky, domain.QuotaDayOf(time.Now()))
	assert.Equal(t, 1, count)
}

func TestPublishQuotaExceeded(t *testing.T) {
	f := newFixture(t, 1)
	first := f.readyItem(t, domain.PlatformBluesky)
	second := f.readyItem(t, domain.PlatformBluesky)

	_, err := f.service.Publish(context.Background(), first.ID)
	require.NoError(t, err)

	_, err = f.service.Publish(context.Background(), second.ID)
	assert.ErrorIs(t, err, quota.ErrQuotaExceeded)

	// The rejected item is untouched and no extra gateway call happened.
	stored, getErr := f.repo.GetItem(context.Background(), second.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.ItemStateReady, stored.State)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestPublishGatewayFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.gateway.err = errors.New("bluesky: rate limited upstream")
	item := f.readyItem(t, domain.PlatformBluesky)

	_, err := f.service.Publish(context.Background(), item.ID)
	require.ErrorIs(t, err, ErrGatewayFailure)

	stored, getErr := f.repo.GetItem(context.Background(), item.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.ItemStateFailed, stored.State)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "bluesky: rate limited upstream", *stored.LastError)

	// Failure must not consume quota: the retry still has the slot.
	f.gateway.err = nil
	published, err := f.service.Publish(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatePosted, published.State)
	assert.Nil(t, published.LastError)
}

func TestPublishManualPlatformRejected(t *testing.T) {
	f := newFixture(t, 5)
	item := f.readyItem(t, domain.PlatformInstagram)

	_, err := f.service.Publish(context.Background(), item.ID)
	assert.ErrorIs(t, err, ErrManualPlatform)
	assert.Equal(t, 0, f.gateway.calls)
}

func TestMarkPostedManualPlatform(t *testing.T) {
	f := newFixture(t, 5)
	item := f.readyItem(t, domain.PlatformInstagram)

	posted, err := f.service.MarkPosted(context.Background(), item.ID, "https://instagram.com/p/abc")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatePosted, posted.State)
	assert.Equal(t, 0, f.gateway.calls)

	count, _ := f.quotaRepo.GetCount(context.Background(), domain.PlatformInstagram, domain.QuotaDayOf(time.Now()))
	assert.Equal(t, 1, count, "manual confirmations consume quota")
}

func TestMarkPostedAutoPlatformRejected(t *testing.T) {
	f := newFixture(t, 5)
	item := f.readyItem(t, domain.PlatformBluesky)

	_, err := f.service.MarkPosted(context.Background(), item.ID, "https://bsky.app/post/9")
	assert.ErrorIs(t, err, ErrAutoPlatform)
}

func TestPublishInvalidState(t *testing.T) {
	f := newFixture(t, 5)
	item := &domain.QueueItem{
		Platform:      domain.PlatformBluesky,
		Kind:          domain.ItemKindPost,
		Payload:       domain.Payload{Text: "draft"},
		State:         domain.ItemStateDraft,
		AssetComplete: true,
	}
	require.NoError(t, f.repo.CreateItem(context.Background(), item))

	_, err := f.service.Publish(context.Background(), item.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPublishConflictOnHeldLock(t *testing.T) {
	f := newFixture(t, 5)
	item := f.readyItem(t, domain.PlatformBluesky)

	require.True(t, f.service.locks.TryLock(item.ID))
	defer f.service.locks.Unlock(item.ID)

	_, err := f.service.Publish(context.Background(), item.ID)
	assert.ErrorIs(t, err, ErrConflict)

	err = f.service.Delete(context.Background(), item.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMarkReadyValidation(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	t.Run("asset incomplete", func(t *testing.T) {
		item := &domain.QueueItem{
			Platform: domain.PlatformBluesky,
			Kind:     domain.ItemKindPost,
			Payload:  domain.Payload{Text: "hello"},
			State:    domain.ItemStateDraft,
		}
		require.NoError(t, f.repo.CreateItem(ctx, item))

		_, err := f.service.MarkReady(ctx, item.ID)
		assert.ErrorIs(t, err, ErrAssetIncomplete)
	})

	t.Run("no option selected", func(t *testing.T) {
		item := &domain.QueueItem{
			Platform: domain.PlatformBluesky,
			Kind:     domain.ItemKindPost,
			Payload: domain.Payload{Options: []domain.CandidateOption{
				{Text: "variant a"},
				{Text: "variant b"},
			}},
			State:         domain.ItemStateDraft,
			AssetComplete: true,
		}
		require.NoError(t, f.repo.CreateItem(ctx, item))

		_, err := f.service.MarkReady(ctx, item.ID)
		assert.ErrorIs(t, err, ErrNoOptionSelected)
	})

	t.Run("char limit", func(t *testing.T) {
		long := make([]rune, 301)
		for i := range long {
			long[i] = 'x'
		}
		item := &domain.QueueItem{
			Platform:      domain.PlatformBluesky,
			Kind:          domain.ItemKindPost,
			Payload:       domain.Payload{Text: string(long)},
			State:         domain.ItemStateDraft,
			AssetComplete: true,
		}
		require.NoError(t, f.repo.CreateItem(ctx, item))

		_, err := f.service.MarkReady(ctx, item.ID)
		assert.ErrorIs(t, err, ErrCharLimitExceeded)
	})

	t.Run("valid", func(t *testing.T) {
		item := &domain.QueueItem{
			Platform:      domain.PlatformBluesky,
			Kind:          domain.ItemKindPost,
			Payload:       domain.Payload{Text: "short and sweet"},
			State:         domain.ItemStateDraft,
			AssetComplete: true,
		}
		require.NoError(t, f.repo.CreateItem(ctx, item))

		ready, err := f.service.MarkReady(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStateReady, ready.State)
	})
}

func TestPublishQuotaStorageFailureFreesSlot(t *testing.T) {
	f := newFixture(t, 1)
	f.quotaRepo.incrementErr = errors.New("quota_usage: connection reset")
	item := f.readyItem(t, domain.PlatformBluesky)

	_, err := f.service.Publish(context.Background(), item.ID)
	require.Error(t, err)

	day := domain.QuotaDayOf(time.Now())
	count, _ := f.quotaRepo.GetCount(context.Background(), domain.PlatformBluesky, day)
	assert.Equal(t, 0, count, "failed increment must not consume quota")

	// Nothing confirmed and nothing in flight: the slot is free again.
	f.quotaRepo.incrementErr = nil
	require.NoError(t, f.service.ledger.TryReserve(context.Background(), domain.PlatformBluesky, day))
}

func TestPublishCommitFailureReleasesOnlyOwnSlot(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	day := domain.QuotaDayOf(time.Now())

	// A concurrent attempt holds one of the two slots throughout.
	require.NoError(t, f.service.ledger.TryReserve(ctx, domain.PlatformBluesky, day))

	f.repo.txCommitErr = errors.New("commit: broken pipe")
	item := f.readyItem(t, domain.PlatformBluesky)
	_, err := f.service.Publish(ctx, item.ID)
	require.Error(t, err)

	count, _ := f.quotaRepo.GetCount(ctx, domain.PlatformBluesky, day)
	assert.Equal(t, 0, count)

	// The failed attempt hands back its own slot only: one more
	// reservation fits, the next must still respect the held slot.
	require.NoError(t, f.service.ledger.TryReserve(ctx, domain.PlatformBluesky, day))
	err = f.service.ledger.TryReserve(ctx, domain.PlatformBluesky, day)
	assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
}

func TestCreateDefaultsToStandardFormat(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	t.Run("no lock-in leaves format empty", func(t *testing.T) {
		item, err := f.service.Create(ctx, CreateItemInput{
			Platform: domain.PlatformBluesky,
			Kind:     domain.ItemKindPost,
			Payload:  domain.Payload{Text: "plain draft"},
		}, "op-1")
		require.NoError(t, err)
		assert.Nil(t, item.Format)
	})

	f.formats.format = "thread"

	t.Run("locked format applies by default", func(t *testing.T) {
		item, err := f.service.Create(ctx, CreateItemInput{
			Platform: domain.PlatformBluesky,
			Kind:     domain.ItemKindPost,
			Payload:  domain.Payload{Text: "post-lock draft"},
		}, "op-1")
		require.NoError(t, err)
		require.NotNil(t, item.Format)
		assert.Equal(t, "thread", *item.Format)
	})

	t.Run("explicit format overrides the lock", func(t *testing.T) {
		item, err := f.service.Create(ctx, CreateItemInput{
			Platform: domain.PlatformBluesky,
			Kind:     domain.ItemKindPost,
			Payload:  domain.Payload{Text: "one-off experiment"},
			Format:   "single",
		}, "op-1")
		require.NoError(t, err)
		require.NotNil(t, item.Format)
		assert.Equal(t, "single", *item.Format)
	})
}

func TestUpdateSelectionOutOfRange(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	item := &domain.QueueItem{
		Platform: domain.PlatformBluesky,
		Kind:     domain.ItemKindPost,
		Payload: domain.Payload{Options: []domain.CandidateOption{
			{Text: "variant a"},
			{Text: "variant b"},
		}},
		State: domain.ItemStateDraft,
	}
	require.NoError(t, f.repo.CreateItem(ctx, item))

	bad := 5
	_, err := f.service.Update(ctx, item.ID, UpdateItemInput{SelectedOption: &bad})
	assert.ErrorIs(t, err, ErrInvalidSelection)

	good := 1
	updated, err := f.service.Update(ctx, item.ID, UpdateItemInput{SelectedOption: &good})
	require.NoError(t, err)
	require.NotNil(t, updated.SelectedOption)
	assert.Equal(t, 1, *updated.SelectedOption)
}
