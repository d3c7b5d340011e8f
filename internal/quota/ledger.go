// Package quota implements the per-platform daily publish budget.
package quota

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/pkg/metrics"
)

// Ledger tracks per-(platform, day) publish consumption. The counter in
// storage is incremented only on a gateway-confirmed success; in-flight
// attempts hold an in-memory reservation so concurrent publishes cannot
// jointly overrun the limit.
type Ledger struct {
	repo Repository
	caps *domain.Capabilities

	mu       sync.Mutex
	reserved map[string]int
}

// NewLedger creates a new quota ledger.
func NewLedger(repo Repository, caps *domain.Capabilities) *Ledger {
	return &Ledger{
		repo:     repo,
		caps:     caps,
		reserved: make(map[string]int),
	}
}

func reservationKey(platform domain.Platform, day domain.QuotaDay) string {
	return string(platform) + "|" + string(day)
}

// TryReserve takes a slot for one publish attempt. The check against the
// confirmed count plus outstanding reservations is serialized per ledger,
// so at most limit-count attempts can be in flight at once. Callers must
// Release exactly once when the attempt settles, whether or not the
// attempt reached Commit.
func (l *Ledger) TryReserve(ctx context.Context, platform domain.Platform, day domain.QuotaDay) error {
	limit := l.caps.DailyLimit(platform)
	if limit <= 0 {
		return ErrQuotaExceeded
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	count, err := l.repo.GetCount(ctx, platform, day)
	if err != nil {
		return fmt.Errorf("get quota count: %w", err)
	}

	key := reservationKey(platform, day)
	if count+l.reserved[key] >= limit {
		return ErrQuotaExceeded
	}

	l.reserved[key]++
	return nil
}

// Commit increments the durable counter inside the caller's transaction
// after a confirmed success. The SQL guard is a backstop: the reservation
// already prevents overruns in-process. Commit does not touch the
// reservation; the caller releases it once the transaction has settled,
// so the slot is never uncounted while the increment is still invisible
// to concurrent TryReserve calls.
func (l *Ledger) Commit(ctx context.Context, tx pgx.Tx, platform domain.Platform, day domain.QuotaDay) error {
	limit := l.caps.DailyLimit(platform)

	count, err := l.repo.IncrementTx(ctx, tx, platform, day, limit)
	if err != nil {
		return err
	}

	metrics.RecordQuotaUsage(string(platform), count)
	return nil
}

// Release drops a reservation once the publish attempt has settled,
// success or failure. Only Commit moves the durable counter, so failed
// attempts never consume quota.
func (l *Ledger) Release(platform domain.Platform, day domain.QuotaDay) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := reservationKey(platform, day)
	if l.reserved[key] > 0 {
		l.reserved[key]--
	}
	if l.reserved[key] == 0 {
		delete(l.reserved, key)
	}
}

// Usage returns the confirmed count and effective limit for one platform.
func (l *Ledger) Usage(ctx context.Context, platform domain.Platform, day domain.QuotaDay) (domain.QuotaUsage, error) {
	count, err := l.repo.GetCount(ctx, platform, day)
	if err != nil {
		return domain.QuotaUsage{}, fmt.Errorf("get quota count: %w", err)
	}
	return domain.QuotaUsage{
		Platform: platform,
		Day:      day,
		Count:    count,
		Limit:    l.caps.DailyLimit(platform),
		Warmup:   l.caps.WarmupMode(),
	}, nil
}

// UsageAll returns usage for every platform on the given day.
func (l *Ledger) UsageAll(ctx context.Context, day domain.QuotaDay) ([]domain.QuotaUsage, error) {
	counts, err := l.repo.Counts(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("get quota counts: %w", err)
	}

	usages := make([]domain.QuotaUsage, 0, len(domain.AllPlatforms))
	for _, p := range domain.AllPlatforms {
		usages = append(usages, domain.QuotaUsage{
			Platform: p,
			Day:      day,
			Count:    counts[p],
			Limit:    l.caps.DailyLimit(p),
			Warmup:   l.caps.WarmupMode(),
		})
	}
	return usages, nil
}
