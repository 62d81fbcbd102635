package availability

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRuleRepository reads availability rules from the relational store.
type PostgresRuleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRuleRepository initializes a repo backed by pgxpool.
func NewPostgresRuleRepository(pool *pgxpool.Pool) *PostgresRuleRepository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PostgresRuleRepository{pool: pool}
}

// ListActiveByProvider returns the provider's active rules. Day-of-week
// numbering is normalized here, at the store boundary, so no reader ever
// branches on two conventions.
func (r *PostgresRuleRepository) ListActiveByProvider(ctx context.Context, providerID string) ([]Rule, error) {
	query := `
		SELECT id, provider_id, scope, kind, COALESCE(day_of_week, -1),
		       COALESCE(to_char(specific_date, 'YYYY-MM-DD'), ''),
		       start_time, end_time, active
		FROM availability_rules
		WHERE provider_id = $1 AND active = true
		ORDER BY scope, day_of_week, start_time
	`
	rows, err := r.pool.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("availability: list rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(
			&rule.ID,
			&rule.ProviderID,
			&rule.Scope,
			&rule.Kind,
			&rule.DayOfWeek,
			&rule.SpecificDate,
			&rule.StartTime,
			&rule.EndTime,
			&rule.Active,
		); err != nil {
			return nil, fmt.Errorf("availability: scan rule: %w", err)
		}
		rule.DayOfWeek = normalizeWeekday(rule.DayOfWeek)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate rules: %w", err)
	}
	return rules, nil
}

// MarkDateUnavailable inserts a date-specific unavailable override for the
// provider. Overrides are hard vetoes: the generator skips the whole day.
func (r *PostgresRuleRepository) MarkDateUnavailable(ctx context.Context, providerID, date string) error {
	query := `
		INSERT INTO availability_rules (id, provider_id, scope, kind, specific_date, start_time, end_time, active)
		VALUES (gen_random_uuid(), $1, 'date_specific', 'unavailable', $2, '00:00', '23:59', true)
		ON CONFLICT (provider_id, scope, kind, specific_date) DO UPDATE SET active = true
	`
	if _, err := r.pool.Exec(ctx, query, providerID, date); err != nil {
		return fmt.Errorf("availability: mark date unavailable: %w", err)
	}
	return nil
}

// ClearDateOverrides deactivates every date-specific override for the
// provider on the given date.
func (r *PostgresRuleRepository) ClearDateOverrides(ctx context.Context, providerID, date string) error {
	query := `
		UPDATE availability_rules SET active = false
		WHERE provider_id = $1 AND scope = 'date_specific' AND specific_date = $2
	`
	if _, err := r.pool.Exec(ctx, query, providerID, date); err != nil {
		return fmt.Errorf("availability: clear date overrides: %w", err)
	}
	return nil
}

// normalizeWeekday maps legacy ISO rows (Sunday stored as 7) onto the
// Sunday-is-zero convention used everywhere else.
func normalizeWeekday(day int) int {
	if day == 7 {
		return 0
	}
	return day
}

// PostgresProviderDirectory lists bookable providers from the store.
type PostgresProviderDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresProviderDirectory initializes a directory backed by pgxpool.
func NewPostgresProviderDirectory(pool *pgxpool.Pool) *PostgresProviderDirectory {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PostgresProviderDirectory{pool: pool}
}

// SetAvailable flips the provider's bookable flag; exited providers are
// removed from the aggregation set without deleting their history.
func (d *PostgresProviderDirectory) SetAvailable(ctx context.Context, providerID string, available bool) error {
	query := `UPDATE providers SET available = $2, updated_at = now() WHERE id = $1`
	tag, err := d.pool.Exec(ctx, query, providerID, available)
	if err != nil {
		return fmt.Errorf("availability: set provider availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// ListActiveProviderIDs returns providers marked both active and available.
func (d *PostgresProviderDirectory) ListActiveProviderIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT id FROM providers
		WHERE active = true AND available = true
		ORDER BY id
	`
	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("availability: list providers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("availability: scan provider id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate providers: %w", err)
	}
	return ids, nil
}
