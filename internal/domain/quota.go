package domain

import "time"

// QuotaDay is a calendar day in the service's reference timezone,
// formatted as 2006-01-02. Quota records are keyed by (platform, day).
type QuotaDay string

// QuotaDayOf converts a timestamp to its quota day in UTC.
func QuotaDayOf(t time.Time) QuotaDay {
	return QuotaDay(t.UTC().Format("2006-01-02"))
}

// QuotaRecord tracks successful publishes for one platform on one day.
// Count is incremented only on a gateway-confirmed success.
type QuotaRecord struct {
	Platform  Platform
	Day       QuotaDay
	Count     int
	UpdatedAt time.Time
}

// QuotaUsage is the operator-facing view of one platform's daily budget.
type QuotaUsage struct {
	Platform Platform `json:"platform"`
	Day      QuotaDay `json:"day"`
	Count    int      `json:"count"`
	Limit    int      `json:"limit"`
	Warmup   bool     `json:"warmup"`
}
