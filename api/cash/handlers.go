package cash

import (
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"ClinicCash/api/constants"
	"ClinicCash/internal/anticipation"
	"ClinicCash/internal/importer"
	"ClinicCash/internal/ledger"
	"ClinicCash/internal/recon"
	"ClinicCash/internal/storage"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type handlers struct {
	store    storage.Store
	engine   *recon.Engine
	importer *importer.Importer
	db       *pgxpool.Pool
}

func NewRouter(store storage.Store, db *pgxpool.Pool) *mux.Router {
	h := &handlers{
		store:    store,
		engine:   recon.NewEngine(store),
		importer: importer.New(store),
		db:       db,
	}

	r := mux.NewRouter()
	r.HandleFunc("/cash/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/cash/receivables/pending", h.ListPendingReceivables).Methods(http.MethodGet)
	r.HandleFunc("/cash/receivables/ingest", h.IngestReceivables).Methods(http.MethodPost)
	r.HandleFunc("/cash/receivables/upload", h.UploadBilling).Methods(http.MethodPost)

	r.HandleFunc("/cash/settlements/{source}/pending", h.ListPendingSettlements).Methods(http.MethodGet)
	r.HandleFunc("/cash/settlements/{source}/upload", h.UploadStatement).Methods(http.MethodPost)
	r.HandleFunc("/cash/settlements/{source}/ingest", h.IngestSettlements).Methods(http.MethodPost)

	r.HandleFunc("/cash/reconcile", h.Reconcile).Methods(http.MethodPost)

	r.HandleFunc("/cash/anticipation/simulate", h.SimulateAnticipation).Methods(http.MethodPost)
	r.HandleFunc("/cash/anticipation/solve", h.SolveAnticipationRate).Methods(http.MethodPost)

	r.HandleFunc("/cash/balances", h.Balances).Methods(http.MethodGet)
	r.HandleFunc("/cash/journal/{operation_id}", h.JournalByOperation).Methods(http.MethodGet)

	return r
}

func StartCashServer(server *http.Server) {
	log.Println("Cash Service started on", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Cash Service failed: %v", err)
	}
}

func (h *handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) ListPendingReceivables(w http.ResponseWriter, r *http.Request) {
	book := &ledger.ReceivablesBook{}
	if !h.loadSnapshot(w, r, storage.LedgerReceivables, book) {
		return
	}

	kind := ledger.OriginKind(r.URL.Query().Get(constants.QueryKind))
	from, ok := parseDateQuery(w, r, constants.QueryFrom)
	if !ok {
		return
	}
	to, ok := parseDateQuery(w, r, constants.QueryTo)
	if !ok {
		return
	}

	rows := book.ListPending(kind, from, to)
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.ResidualAmount)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rows":           rows,
		"total_residual": total,
	})
}

func (h *handlers) IngestReceivables(w http.ResponseWriter, r *http.Request) {
	var inputs []importer.ReceivableInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		respondError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	summary, err := h.importer.IngestReceivables(r.Context(), inputs)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *handlers) UploadBilling(w http.ResponseWriter, r *http.Request) {
	file, _, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	inputs, skipped, err := importer.ParseBilling(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := h.importer.IngestReceivables(r.Context(), inputs)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"created":    summary.Created,
		"duplicates": summary.Duplicates,
		"ids":        summary.IDs,
		"skipped":    skipped,
	})
}

func (h *handlers) ListPendingSettlements(w http.ResponseWriter, r *http.Request) {
	source, ok := sourceParam(w, r)
	if !ok {
		return
	}
	batch := &ledger.SettlementBatch{}
	if !h.loadSnapshot(w, r, source, batch) {
		return
	}
	rows := batch.Pending()
	gross := decimal.Zero
	net := decimal.Zero
	for _, row := range rows {
		gross = gross.Add(row.GrossAmount)
		net = net.Add(row.NetAmount)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":    batch.BatchID,
		"rows":        rows,
		"total_gross": gross,
		"total_net":   net,
	})
}

func (h *handlers) UploadStatement(w http.ResponseWriter, r *http.Request) {
	source, ok := sourceParam(w, r)
	if !ok {
		return
	}
	file, header, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	summary, err := h.importer.ImportStatement(r.Context(), source, header.Filename, file)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *handlers) IngestSettlements(w http.ResponseWriter, r *http.Request) {
	source, ok := sourceParam(w, r)
	if !ok {
		return
	}
	var rows []ledger.SettlementRecord
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		respondError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	summary, err := h.importer.IngestSettlements(r.Context(), source, rows)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req recon.OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	result, err := h.engine.Reconcile(r.Context(), req)
	if err != nil {
		if result != nil && errors.Is(err, storage.ErrVersionConflict) {
			// Journal rows exist; only status flips are missing. The result
			// says which handles still need closing.
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"error":  constants.ErrReconcileConflict,
				"result": result,
			})
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type anticipationRequest struct {
	Amounts          []decimal.Decimal `json:"amounts"`
	RatePct          float64           `json:"rate_pct,omitempty"`
	ObservedDiscount *decimal.Decimal  `json:"observed_discount,omitempty"`
	SeedRate         float64           `json:"seed_rate,omitempty"`
	SaleDate         string            `json:"sale_date"`
	DueDates         []string          `json:"due_dates,omitempty"`
}

func (req *anticipationRequest) schedule(w http.ResponseWriter) (time.Time, []time.Time, bool) {
	saleDate, err := time.Parse(constants.DateFormat, req.SaleDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, constants.ErrInvalidDate)
		return time.Time{}, nil, false
	}
	var dueDates []time.Time
	if len(req.DueDates) > 0 {
		for _, raw := range req.DueDates {
			d, err := time.Parse(constants.DateFormat, raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, constants.ErrInvalidDate)
				return time.Time{}, nil, false
			}
			dueDates = append(dueDates, d)
		}
	} else {
		dueDates = anticipation.DueDates(saleDate, len(req.Amounts))
	}
	return saleDate, dueDates, true
}

func (h *handlers) SimulateAnticipation(w http.ResponseWriter, r *http.Request) {
	var req anticipationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Amounts) == 0 || req.RatePct <= 0 {
		respondError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	saleDate, dueDates, ok := req.schedule(w)
	if !ok {
		return
	}
	result := anticipation.Calculate(req.Amounts, req.RatePct, saleDate, dueDates)
	respondJSON(w, http.StatusOK, result)
}

func (h *handlers) SolveAnticipationRate(w http.ResponseWriter, r *http.Request) {
	var req anticipationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Amounts) == 0 || req.ObservedDiscount == nil {
		respondError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
		return
	}
	saleDate, dueDates, ok := req.schedule(w)
	if !ok {
		return
	}
	fit := anticipation.SolveRate(*req.ObservedDiscount, req.Amounts, saleDate, dueDates, req.SeedRate)
	respondJSON(w, http.StatusOK, fit)
}

func (h *handlers) Balances(w http.ResponseWriter, r *http.Request) {
	journal := &ledger.Journal{}
	if !h.loadSnapshot(w, r, storage.LedgerJournal, journal) {
		return
	}
	respondJSON(w, http.StatusOK, journal.Balances())
}

func (h *handlers) JournalByOperation(w http.ResponseWriter, r *http.Request) {
	operationID := mux.Vars(r)["operation_id"]
	journal := &ledger.Journal{}
	if !h.loadSnapshot(w, r, storage.LedgerJournal, journal) {
		return
	}
	rows := journal.ByOperation(operationID)
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "no journal rows for operation "+operationID)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *handlers) loadSnapshot(w http.ResponseWriter, r *http.Request, name storage.Ledger, target interface{}) bool {
	data, _, err := h.store.Read(r.Context(), name)
	if err != nil {
		log.Printf("snapshot read %s failed: %v", name, err)
		respondError(w, http.StatusServiceUnavailable, constants.ErrStorageUnavailable)
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, target); err != nil {
		log.Printf("snapshot %s is corrupt: %v", name, err)
		respondError(w, http.StatusInternalServerError, constants.ErrStorageUnavailable)
		return false
	}
	return true
}

func sourceParam(w http.ResponseWriter, r *http.Request) (storage.Ledger, bool) {
	source := storage.Ledger(mux.Vars(r)[constants.ParamSource])
	switch source {
	case storage.LedgerMulvi, storage.LedgerGetnet, storage.LedgerIPES:
		return source, true
	}
	respondError(w, http.StatusBadRequest, constants.ErrInvalidSource)
	return "", false
}

func formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, constants.ErrMissingFile)
		return nil, nil, false
	}
	f, fh, err := r.FormFile(constants.FormFieldFile)
	if err != nil {
		respondError(w, http.StatusBadRequest, constants.ErrMissingFile)
		return nil, nil, false
	}
	return f, fh, true
}

func parseDateQuery(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(constants.DateFormat, raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, constants.ErrInvalidDate)
		return time.Time{}, false
	}
	return t, true
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
