package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// StatsRepositoryPG updates daily donation counters.
type StatsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new stats repo.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepositoryPG {
	return &StatsRepositoryPG{pool: pool}
}

// IncrementCounters adds the given deltas to one day's counter row.
func (r *StatsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int64) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO donation_stats_daily (day, created, completed, failed, completed_npr_cent, completed_usd_cent)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (day) DO UPDATE SET
  created = donation_stats_daily.created + EXCLUDED.created,
  completed = donation_stats_daily.completed + EXCLUDED.completed,
  failed = donation_stats_daily.failed + EXCLUDED.failed,
  completed_npr_cent = donation_stats_daily.completed_npr_cent + EXCLUDED.completed_npr_cent,
  completed_usd_cent = donation_stats_daily.completed_usd_cent + EXCLUDED.completed_usd_cent;
`, day, counters["created"], counters["completed"], counters["failed"],
		counters["completed_npr_cent"], counters["completed_usd_cent"])
	return err
}

// GetSummary returns per-day counters for the most recent N days.
func (r *StatsRepositoryPG) GetSummary(ctx context.Context, days int) ([]domain.DailyStats, error) {
	rows, err := r.pool.Query(ctx, `
SELECT day, created, completed, failed, completed_npr_cent, completed_usd_cent
FROM donation_stats_daily
ORDER BY day DESC
LIMIT $1;
`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.DailyStats
	for rows.Next() {
		var s domain.DailyStats
		if err := rows.Scan(&s.Day, &s.Created, &s.Completed, &s.Failed, &s.CompletedNPRCent, &s.CompletedUSDCent); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
