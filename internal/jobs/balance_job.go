package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ClinicCash/internal/config"
	"ClinicCash/internal/ledger"
	"ClinicCash/internal/logger"
	"ClinicCash/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

type BalanceConfig struct {
	Schedule string
	TimeZone string
}

func NewDefaultBalanceConfig() *BalanceConfig {
	return &BalanceConfig{
		Schedule: config.DefaultBalanceSchedule,
		TimeZone: config.DefaultTimeZone,
	}
}

// RunBalanceScheduler starts the nightly balance recompute. Each run sums
// the journal per account, writes an audit line, and when a database pool
// is available persists the day's balances for reporting.
func RunBalanceScheduler(cfg *BalanceConfig, store storage.Store, db *pgxpool.Pool) error {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultBalanceSchedule
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := ComputeDailyBalances(store, db); err != nil {
			logger.Audit(fmt.Sprintf("Balance recompute failed: %v", err))
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule balance recompute: %v", err)
	}

	c.Start()
	logger.Audit("Balance scheduler started")
	return nil
}

// ComputeDailyBalances sums the journal per account. Balances are derived,
// never stored as the source of truth; the daily_balances table is a
// reporting convenience only.
func ComputeDailyBalances(store storage.Store, db *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	data, _, err := store.Read(ctx, storage.LedgerJournal)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	journal := &ledger.Journal{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, journal); err != nil {
			return fmt.Errorf("corrupt journal snapshot: %w", err)
		}
	}

	balances := journal.Balances()
	today := time.Now().Format(config.DateFormat)
	for _, account := range ledger.Accounts() {
		balance := balances[account]
		logger.Audit(fmt.Sprintf("balance %s %s = %s", today, account, balance.Round(2)))
		if db == nil {
			continue
		}
		_, err := db.Exec(ctx, `
			INSERT INTO daily_balances (computed_on, account, balance)
			VALUES ($1, $2, $3)
			ON CONFLICT (computed_on, account) DO UPDATE SET balance = EXCLUDED.balance`,
			today, string(account), balance)
		if err != nil {
			return fmt.Errorf("failed to persist balance for %s: %w", account, err)
		}
	}
	return nil
}
