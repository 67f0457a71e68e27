package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/usecase/admin"
	"github.com/refractlabs/refract-core/internal/usecase/stats"
	"github.com/refractlabs/refract-core/internal/usecase/transfer"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

// Server exposes the ledger over REST.
type Server struct {
	logger  *zap.Logger
	ledger  *transfer.Service
	admin   *admin.Service
	stats   *stats.Service
	journal domain.Journal
}

// NewServer creates the REST adapter over the assembled services.
func NewServer(logger *zap.Logger, ledger *transfer.Service, adm *admin.Service, st *stats.Service, journal domain.Journal) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{logger: logger, ledger: ledger, admin: adm, stats: st, journal: journal}
}

// RegisterRoutes mounts the read-only routes and the token-guarded
// transfer and admin routes.
func (s *Server) RegisterRoutes(r *mux.Router, token string, principal domain.Address) {
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	public := r.PathPrefix("/v1").Subrouter()
	public.HandleFunc("/supply", s.handleSupply).Methods(http.MethodGet)
	public.HandleFunc("/balance/{address}", s.handleBalance).Methods(http.MethodGet)
	public.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	public.HandleFunc("/journal/entries", s.handleJournal).Methods(http.MethodGet)

	private := r.PathPrefix("/v1").Subrouter()
	private.Use(TokenAuth(token, principal))
	private.HandleFunc("/transfer", s.handleTransfer).Methods(http.MethodPost)

	adminRoutes := private.PathPrefix("/admin").Subrouter()
	adminRoutes.HandleFunc("/tax/rates", s.handleSetTaxRates).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/tax/wallet", s.handleSetDestinationWallet).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/exclusions/tax", s.handleSetTaxExclusion).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/exclusions/reflections", s.handleSetReflectionExclusion).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/trigger/mode", s.handleSetTriggerMode).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/trigger/parameters", s.handleSetTriggerParameters).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/trigger/window", s.handleScheduleWindow).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/trigger/window", s.handleClearWindow).Methods(http.MethodDelete)
	adminRoutes.HandleFunc("/ownership", s.handleTransferOwnership).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		TotalSupply string `json:"total_supply"`
		Minted      bool   `json:"minted"`
	}{
		TotalSupply: s.ledger.TotalSupply().Dec(),
		Minted:      s.ledger.Minted(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddr(w, "address", mux.Vars(r)["address"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Account string `json:"account"`
		Balance string `json:"balance"`
	}{
		Account: account.Hex(),
		Balance: s.ledger.BalanceOf(account).Dec(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Overview())
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("journal read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type transferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}

	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	from := caller
	if req.From != "" {
		if from, ok = parseAddr(w, "from", req.From); !ok {
			return
		}
	}
	to, ok := parseAddr(w, "to", req.To)
	if !ok {
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount: %v", err))
		return
	}

	if err := s.ledger.Transfer(r.Context(), from, to, amount); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		From        string `json:"from"`
		To          string `json:"to"`
		Amount      string `json:"amount"`
		FromBalance string `json:"from_balance"`
		ToBalance   string `json:"to_balance"`
	}{
		From:        from.Hex(),
		To:          to.Hex(),
		Amount:      amount.Dec(),
		FromBalance: s.ledger.BalanceOf(from).Dec(),
		ToBalance:   s.ledger.BalanceOf(to).Dec(),
	})
}

type taxComponentPayload struct {
	Name    string `json:"name"`
	RateBps uint64 `json:"rate_bps"`
	Kind    string `json:"kind"`
	Wallet  string `json:"wallet,omitempty"`
}

func (s *Server) handleSetTaxRates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Components []taxComponentPayload `json:"components"`
	}
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	components := make([]domain.TaxComponent, 0, len(req.Components))
	for _, payload := range req.Components {
		component := domain.TaxComponent{
			Name:    payload.Name,
			RateBps: payload.RateBps,
			Kind:    domain.DestinationKind(strings.ToUpper(payload.Kind)),
		}
		if payload.Wallet != "" {
			wallet, ok := parseAddr(w, "wallet", payload.Wallet)
			if !ok {
				return
			}
			component.Wallet = wallet
		}
		components = append(components, component)
	}

	if err := s.admin.SetTaxRates(r.Context(), caller, components); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) handleSetDestinationWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Component string `json:"component"`
		Wallet    string `json:"wallet"`
	}
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	wallet, ok := parseAddr(w, "wallet", req.Wallet)
	if !ok {
		return
	}

	if err := s.admin.SetDestinationWallet(r.Context(), caller, req.Component, wallet); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

type exclusionRequest struct {
	Account  string `json:"account"`
	Excluded bool   `json:"excluded"`
}

func (s *Server) handleSetTaxExclusion(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	account, ok := parseAddr(w, "account", req.Account)
	if !ok {
		return
	}

	if err := s.admin.SetExcludedFromTax(r.Context(), caller, account, req.Excluded); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) handleSetReflectionExclusion(w http.ResponseWriter, r *http.Request) {
	var req exclusionRequest
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	account, ok := parseAddr(w, "account", req.Account)
	if !ok {
		return
	}

	if err := s.admin.SetExcludedFromReflections(r.Context(), caller, account, req.Excluded); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) handleSetTriggerMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	mode := domain.TriggerMode(strings.ToUpper(req.Mode))
	if err := s.admin.SetTriggerMode(r.Context(), caller, mode); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) handleSetTriggerParameters(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfettiModulo   uint64 `json:"confetti_modulo"`
		ReverseDayModulo uint64 `json:"reverse_day_modulo"`
		LuckyDropModulo  uint64 `json:"lucky_drop_modulo"`
		LuckyPayoutBps   uint64 `json:"lucky_payout_bps"`
		LuckyMaxPayout   string `json:"lucky_max_payout"`
		LuckyNeedsWindow bool   `json:"lucky_needs_window"`
	}
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	maxPayout, err := uint256.FromDecimal(req.LuckyMaxPayout)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid lucky_max_payout: %v", err))
		return
	}

	params := domain.TriggerParams{
		ConfettiModulo:   req.ConfettiModulo,
		ReverseDayModulo: req.ReverseDayModulo,
		LuckyDropModulo:  req.LuckyDropModulo,
		LuckyPayoutBps:   req.LuckyPayoutBps,
		LuckyMaxPayout:   maxPayout,
		LuckyNeedsWindow: req.LuckyNeedsWindow,
	}
	if err := s.admin.SetTriggerParameters(r.Context(), caller, params); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) handleScheduleWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode  string `json:"mode"`
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start: %v", err))
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end: %v", err))
		return
	}

	mode := domain.TriggerMode(strings.ToUpper(req.Mode))
	if err := s.admin.ScheduleTriggerWindow(r.Context(), caller, mode, start, end); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) handleClearWindow(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.admin.ClearScheduledWindow(r.Context(), caller); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewOwner string `json:"new_owner"`
	}
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	newOwner, ok := parseAddr(w, "new_owner", req.NewOwner)
	if !ok {
		return
	}

	if err := s.admin.TransferOwnership(r.Context(), caller, newOwner); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.ack(w)
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	a, ok := Caller(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no authenticated principal")
	}
	return a, ok
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrRateCapExceeded),
		errors.Is(err, domain.ErrZeroAddressRejected),
		errors.Is(err, domain.ErrNoOpRejected),
		errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrParameterRejected),
		errors.Is(err, domain.ErrAlreadyMinted):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) ack(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseAddr(w http.ResponseWriter, field, value string) (domain.Address, bool) {
	a, err := domain.ParseAddress(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %v", field, err))
		return a, false
	}
	return a, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
