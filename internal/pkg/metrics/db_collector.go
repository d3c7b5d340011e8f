package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordDBPoolMetrics exports the pgx pool state as gauge samples.
func RecordDBPoolMetrics(pool *pgxpool.Pool) {
	stats := pool.Stat()

	samples := map[string]float64{
		"in_use": float64(stats.AcquiredConns()),
		"idle":   float64(stats.IdleConns()),
		"max":    float64(stats.MaxConns()),
	}
	for state, value := range samples {
		DBPoolConnections.WithLabelValues(state).Set(value)
	}
}
