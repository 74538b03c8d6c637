package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/elys-network/farmd/internal/ledger"
	"github.com/elys-network/farmd/internal/logger"
	"github.com/elys-network/farmd/internal/pool"
	"github.com/elys-network/farmd/internal/registry"
	"github.com/elys-network/farmd/internal/state"
	"github.com/elys-network/farmd/internal/types"
	"github.com/elys-network/farmd/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the staking pool registry and the event journal over a
// JSON API. When backed by the in-memory ledger it also exposes a faucet
// for local use.
type WebServer struct {
	router   *mux.Router
	port     string
	registry *registry.Registry
	faucet   *ledger.MemoryLedger
}

// NewWebServer creates a new web server instance. faucet may be nil, which
// disables the /api/faucet endpoint.
func NewWebServer(port string, reg *registry.Registry, faucet *ledger.MemoryLedger) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:   mux.NewRouter(),
		port:     port,
		registry: reg,
		faucet:   faucet,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleListPools).Methods("GET")
	api.HandleFunc("/pools", ws.handleCreatePool).Methods("POST")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/events", ws.handleGetPoolEvents).Methods("GET")
	api.HandleFunc("/pools/{id}/positions", ws.handleListPositions).Methods("GET")
	api.HandleFunc("/pools/{id}/positions/{addr}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/pools/{id}/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/pools/{id}/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/pools/{id}/harvest", ws.handleHarvest).Methods("POST")
	api.HandleFunc("/pools/{id}/emergency-withdraw", ws.handleEmergencyWithdraw).Methods("POST")
	api.HandleFunc("/pools/{id}/rewards", ws.handleAddRewards).Methods("POST")
	api.HandleFunc("/pools/{id}/rewards/withdraw", ws.handleWithdrawRewards).Methods("POST")
	api.HandleFunc("/pools/{id}/schedule", ws.handleSetSchedule).Methods("POST")
	api.HandleFunc("/pools/{id}/emergency-close", ws.handleEmergencyClose).Methods("POST")
	api.HandleFunc("/pools/{id}/owner", ws.handleTransferOwnership).Methods("POST")
	api.HandleFunc("/owners/{addr}/pools", ws.handlePoolsByOwner).Methods("GET")
	if ws.faucet != nil {
		api.HandleFunc("/faucet", ws.handleFaucet).Methods("POST")
	}

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the configured router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status including DB connectivity.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "farmd-staking-pool-service",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"pool_count":       len(ws.registry.Records()),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// displayPrecision is the decimal precision used for human-readable
// amounts in list responses (micro-denominated assets).
const displayPrecision = 6

type poolListEntry struct {
	types.PoolRecord
	TotalStakedDisplay float64 `json:"total_staked_display"`
}

// handleListPools returns live snapshots of every pool.
func (ws *WebServer) handleListPools(w http.ResponseWriter, r *http.Request) {
	records := ws.registry.Records()
	entries := make([]poolListEntry, 0, len(records))
	for _, rec := range records {
		display, err := utils.SDKIntToFloat64(rec.TotalStaked, displayPrecision)
		if err != nil {
			webLogger.Error().Err(err).Str("pool_id", rec.ID).Msg("Failed to convert staked amount for display")
		}
		entries = append(entries, poolListEntry{PoolRecord: rec, TotalStakedDisplay: display})
	}
	response := map[string]interface{}{
		"pools": entries,
		"count": len(entries),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

type createPoolRequest struct {
	Owner        string `json:"owner"`
	DepositDenom string `json:"deposit_denom"`
	RewardDenom  string `json:"reward_denom"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	FeeBps       uint64 `json:"fee_bps"`
}

// handleCreatePool creates a new staking pool.
func (ws *WebServer) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := ws.registry.CreatePool(types.PoolParams{
		Owner:        req.Owner,
		DepositDenom: req.DepositDenom,
		RewardDenom:  req.RewardDenom,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		FeeBps:       req.FeeBps,
	})
	if err != nil {
		ws.writeEngineError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusCreated, p.Record())
}

// handleGetPool returns the live snapshot of a single pool.
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

// handleGetPoolEvents returns the pool's journaled events, newest first.
func (ws *WebServer) handleGetPoolEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	events, err := state.GetPoolEvents(vars["id"], limit)
	if err != nil {
		webLogger.Error().Err(err).Str("pool_id", vars["id"]).Msg("Failed to get pool events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve pool events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleListPositions returns every current position in a pool.
func (ws *WebServer) handleListPositions(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	positions := p.Positions()
	response := map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPosition returns one user's position including pending reward.
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	position, found := p.PositionOf(vars["addr"])
	if !found {
		ws.writeErrorResponse(w, http.StatusNotFound, "No position for address")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, position)
}

type stakeRequest struct {
	User   string      `json:"user"`
	Amount sdkmath.Int `json:"amount"`
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.Deposit(r.Context(), req.User, req.Amount); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.Withdraw(r.Context(), req.User, req.Amount); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

type userRequest struct {
	User string `json:"user"`
}

func (ws *WebServer) handleHarvest(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.Harvest(r.Context(), req.User); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

func (ws *WebServer) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.EmergencyWithdraw(r.Context(), req.User); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

type rewardRequest struct {
	Caller string      `json:"caller"`
	Amount sdkmath.Int `json:"amount"`
}

func (ws *WebServer) handleAddRewards(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.AddRewards(r.Context(), req.Caller, req.Amount); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

func (ws *WebServer) handleWithdrawRewards(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.WithdrawRewards(r.Context(), req.Caller, req.Amount); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

type scheduleRequest struct {
	Caller  string `json:"caller"`
	EndTime int64  `json:"end_time"`
}

func (ws *WebServer) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.SetSchedule(req.Caller, req.EndTime); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

func (ws *WebServer) handleEmergencyClose(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.ActivateEmergencyClose(r.Context(), req.Caller); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

type ownerRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"new_owner"`
}

func (ws *WebServer) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.poolFromRequest(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.TransferOwnership(req.Caller, req.NewOwner); err != nil {
		ws.writeEngineError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p.Record())
}

type faucetRequest struct {
	Denom  string      `json:"denom"`
	To     string      `json:"to"`
	Amount sdkmath.Int `json:"amount"`
}

// handleFaucet mints units of a denom to an account in the in-memory
// ledger. Only available when the service runs against the memory ledger.
func (ws *WebServer) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Denom == "" || req.To == "" || req.Amount.IsNil() || !req.Amount.IsPositive() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "denom, to and a positive amount are required")
		return
	}
	ws.faucet.Mint(req.Denom, req.To, req.Amount)

	balance, err := ws.faucet.BalanceOf(r.Context(), req.Denom, req.To)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to read balance")
		return
	}
	response := map[string]interface{}{
		"denom":   req.Denom,
		"to":      req.To,
		"balance": balance,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handlePoolsByOwner returns the identifiers of pools owned by an address.
func (ws *WebServer) handlePoolsByOwner(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ids := ws.registry.PoolsByOwner(vars["addr"])
	response := map[string]interface{}{
		"owner": vars["addr"],
		"pools": ids,
		"count": len(ids),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// poolFromRequest resolves the {id} path variable into a pool, writing a
// 404 if it does not exist.
func (ws *WebServer) poolFromRequest(w http.ResponseWriter, r *http.Request) (*pool.Pool, bool) {
	vars := mux.Vars(r)
	p, err := ws.registry.Get(vars["id"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return nil, false
	}
	return p, true
}

// writeEngineError maps engine error taxonomy onto HTTP status codes.
func (ws *WebServer) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pool.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, pool.ErrNotAllowed), errors.Is(err, pool.ErrPoolEnded):
		status = http.StatusConflict
	case errors.Is(err, pool.ErrInsufficientStake),
		errors.Is(err, pool.ErrInsufficientRewards),
		errors.Is(err, pool.ErrInvalidSchedule),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, registry.ErrPoolNotFound):
		status = http.StatusNotFound
	}
	ws.writeErrorResponse(w, status, err.Error())
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
