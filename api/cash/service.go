// Package cash exposes the reconciliation engine over HTTP: statement
// uploads, receivable ingestion, anticipation math and the reconcile
// operation itself.
package cash

import (
	"context"
	"net/http"
	"time"

	"ClinicCash/internal/config"
	"ClinicCash/internal/serviceiface"
	"ClinicCash/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CashService struct {
	config map[string]interface{}
	store  storage.Store
	db     *pgxpool.Pool
	server *http.Server
}

func NewCashService(cfg map[string]interface{}, store storage.Store, db *pgxpool.Pool) serviceiface.Service {
	return &CashService{config: cfg, store: store, db: db}
}

func (s *CashService) Name() string {
	return "cash"
}

func (s *CashService) Start() error {
	addr := config.DefaultHTTPAddr
	if s.config != nil {
		if v, ok := s.config["addr"].(string); ok && v != "" {
			addr = v
		}
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: NewRouter(s.store, s.db),
	}
	go StartCashServer(s.server)
	return nil
}

func (s *CashService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
