package jobs

import (
	"fmt"
	"log"

	"ClinicCash/internal/logger"
	"ClinicCash/internal/serviceiface"
	"ClinicCash/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CronService owns the scheduled work: the nightly balance recompute over
// the journal. Schedules come from services.yaml and can be overridden per
// deployment.
type CronService struct {
	config map[string]interface{}
	store  storage.Store
	db     *pgxpool.Pool
}

func NewCronService(cfg map[string]interface{}, store storage.Store, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		store:  store,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	balanceConfig := NewDefaultBalanceConfig()
	if s.config != nil {
		if schedule, ok := s.config["balance_schedule"].(string); ok && schedule != "" {
			balanceConfig.Schedule = schedule
		}
		if tz, ok := s.config["time_zone"].(string); ok && tz != "" {
			balanceConfig.TimeZone = tz
		}
	}

	if err := RunBalanceScheduler(balanceConfig, s.store, s.db); err != nil {
		return fmt.Errorf("failed to start balance scheduler: %v", err)
	}

	logger.Audit("Cron service started with balance scheduler")
	log.Println("Cron service started — Balance Scheduler scheduled")
	return nil
}

func (s *CronService) Stop() error {
	log.Println("Cron service stopped.")
	return nil
}
