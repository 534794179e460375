package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coinflow-app/coinflow/internal/app/queue"
	"github.com/coinflow-app/coinflow/internal/domain"
)

// defer202 records an action for replay and answers 202. Used when the
// device is offline: the caller gets an acknowledgement, not a result.
func (s *Server) defer202(w http.ResponseWriter, r *http.Request, kind string, args any) {
	id, err := s.queue.Enqueue(r.Context(), kind, args)
	if err != nil {
		writeError(w, domain.StorageUnavailable(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"queued":    true,
		"queue_id":  id,
		"message":   "action saved, will sync when back online",
		"action":    kind,
		"replay_at": "reconnect",
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.Errorf(domain.ErrInvalidAmount.Code, "malformed request body")
}

// ─── Accounts ───────────────────────────────────────────────────────────────

type signupRequest struct {
	ReferrerID string `json:"referrer_id,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.limiter.Check(r.Context(), accountID, "signup"); err != nil {
		writeError(w, err)
		return
	}

	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	acc, err := s.ledger.CreateAccount(r.Context(), accountID, req.ReferrerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	acc, err := s.ledger.Account(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := s.history.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, domain.StorageUnavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}

// ─── Earnings ───────────────────────────────────────────────────────────────

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.monitor.Online() {
		s.defer202(w, r, queue.ActionCheckIn, queue.CheckInArgs{AccountID: accountID})
		return
	}

	res, err := s.ledger.CheckIn(r.Context(), accountID)
	if err != nil {
		if domain.Classify(err) == domain.FailureOffline {
			s.defer202(w, r, queue.ActionCheckIn, queue.CheckInArgs{AccountID: accountID})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.monitor.Online() {
		s.defer202(w, r, queue.ActionSpin, queue.SpinArgs{AccountID: accountID})
		return
	}

	res, err := s.ledger.SpinWheel(r.Context(), accountID)
	if err != nil {
		if domain.Classify(err) == domain.FailureOffline {
			s.defer202(w, r, queue.ActionSpin, queue.SpinArgs{AccountID: accountID})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type addCoinsRequest struct {
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleAddCoins(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req addCoinsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	kind := earningKind(req.Kind)
	if req.Description == "" {
		req.Description = "Coins earned"
	}

	args := queue.AddCoinsArgs{
		AccountID:   accountID,
		Amount:      req.Amount,
		Kind:        string(kind),
		Description: req.Description,
	}
	if !s.monitor.Online() {
		s.defer202(w, r, queue.ActionAddCoins, args)
		return
	}

	acc, err := s.ledger.AddCoins(r.Context(), accountID, req.Amount, kind, req.Description)
	if err != nil {
		if domain.Classify(err) == domain.FailureOffline {
			s.defer202(w, r, queue.ActionAddCoins, args)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// earningKind narrows a client-supplied kind to the credit kinds the
// coins endpoint may record.
func earningKind(kind string) domain.TransactionKind {
	switch k := domain.TransactionKind(kind); k {
	case domain.TxVideoReward, domain.TxAdWatch:
		return k
	default:
		return domain.TxVideoReward
	}
}

type completeTaskRequest struct {
	Reward int64 `json:"reward"`
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	taskID := chi.URLParam(r, "id")
	var req completeTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	args := queue.TaskArgs{AccountID: accountID, TaskID: taskID, Reward: req.Reward}
	if !s.monitor.Online() {
		s.defer202(w, r, queue.ActionTask, args)
		return
	}

	acc, err := s.ledger.CompleteTask(r.Context(), accountID, taskID, req.Reward)
	if err != nil {
		if domain.Classify(err) == domain.FailureOffline {
			s.defer202(w, r, queue.ActionTask, args)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// ─── Withdrawals ────────────────────────────────────────────────────────────

type withdrawalRequest struct {
	Method        string  `json:"method"`
	AccountNumber string  `json:"account_number"`
	Amount        float64 `json:"amount"`
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req withdrawalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	args := queue.WithdrawalArgs{
		AccountID:     accountID,
		Method:        req.Method,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
	}
	if !s.monitor.Online() {
		s.defer202(w, r, queue.ActionWithdrawal, args)
		return
	}

	wd, err := s.ledger.RequestWithdrawal(r.Context(), accountID, req.Method, req.AccountNumber, req.Amount)
	if err != nil {
		if domain.Classify(err) == domain.FailureOffline {
			s.defer202(w, r, queue.ActionWithdrawal, args)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	wds, err := s.history.ListWithdrawals(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, domain.StorageUnavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": wds})
}

// ─── Configuration & Limits ─────────────────────────────────────────────────

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	app, err := s.rates.AppConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	earning, err := s.rates.EarningRates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	withdrawal, err := s.rates.WithdrawalSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"app":        app,
		"earning":    earning,
		"withdrawal": withdrawal,
	})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	accountID, err := actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	action := chi.URLParam(r, "action")
	remaining, err := s.limiter.Remaining(r.Context(), accountID, action)
	if err != nil {
		writeError(w, domain.StorageUnavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action":    action,
		"remaining": remaining,
	})
}
