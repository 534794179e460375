package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/coinflow-app/coinflow/internal/app/cache"
	"github.com/coinflow-app/coinflow/internal/app/ledger"
	"github.com/coinflow-app/coinflow/internal/app/queue"
	"github.com/coinflow-app/coinflow/internal/app/ratelimit"
	"github.com/coinflow-app/coinflow/internal/app/rates"
	"github.com/coinflow-app/coinflow/internal/domain"
	"github.com/coinflow-app/coinflow/internal/infra/connectivity"
	"github.com/coinflow-app/coinflow/internal/infra/sqlite"
)

type apiFixture struct {
	handler http.Handler
	queue   *queue.Queue
	monitor *connectivity.Monitor
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	limiter := ratelimit.New(ratelimit.DefaultConfig(), db)
	provider := rates.New(cache.New(time.Minute), rates.Defaults())
	cfg := ledger.DefaultConfig()
	cfg.RetryBase = time.Millisecond
	l := ledger.New(cfg, db, db, provider, limiter)
	q := queue.New(db)
	monitor := connectivity.New(true)

	srv := NewServer(l, limiter, provider, q, monitor, db)
	return &apiFixture{handler: srv.Handler(), queue: q, monitor: monitor}
}

func (f *apiFixture) do(t *testing.T, method, path, accountID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if accountID != "" {
		req.Header.Set("X-Account-ID", accountID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) signup(t *testing.T, id string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/accounts", id, signupRequest{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", id, rec.Code, rec.Body)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env struct {
		Error errorBody `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope from %q: %v", rec.Body, err)
	}
	return env.Error
}

func TestMissingAccountHeader(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/earnings/checkin", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != domain.ErrNotAuthenticated.Code {
		t.Errorf("code = %s, want NOT_AUTHENTICATED", e.Code)
	}
}

func TestSignupAndAccountRead(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	rec := f.do(t, http.MethodGet, "/api/account", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var acc domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &acc); err != nil {
		t.Fatal(err)
	}
	if acc.ID != "u1" || acc.SpinsRemaining != 2 {
		t.Errorf("account = %+v, want u1 with 2 spins", acc)
	}
}

func TestSignup_Duplicate(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")
	rec := f.do(t, http.MethodPost, "/api/accounts", "u1", signupRequest{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCheckIn(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	rec := f.do(t, http.MethodPost, "/api/earnings/checkin", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var res ledger.CheckInResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Reward != 10 || res.Streak != 1 {
		t.Errorf("result = %+v, want reward 10 streak 1", res)
	}

	// The 1/24h window refuses a second attempt before the day rule
	// even gets a look.
	rec = f.do(t, http.MethodPost, "/api/earnings/checkin", "u1", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != domain.ErrRateLimited.Code {
		t.Errorf("code = %s, want RATE_LIMIT_EXCEEDED", e.Code)
	}
	if e.RetryAfterMS <= 0 {
		t.Errorf("retry_after_ms = %d, want positive", e.RetryAfterMS)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestSpin(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	rec := f.do(t, http.MethodPost, "/api/earnings/spin", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var res ledger.SpinResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", res.Remaining)
	}
	if res.Reward < 5 || res.Reward > 20 {
		t.Errorf("reward = %d, want a wheel segment value", res.Reward)
	}
}

func TestAddCoins(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	rec := f.do(t, http.MethodPost, "/api/earnings/coins", "u1", addCoinsRequest{Amount: 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var acc domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &acc); err != nil {
		t.Fatal(err)
	}
	if acc.Coins != 100 || acc.Balance != 5 {
		t.Errorf("account = %+v, want 100 coins / balance 5", acc)
	}
}

func TestAddCoins_InvalidAmount(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	rec := f.do(t, http.MethodPost, "/api/earnings/coins", "u1", addCoinsRequest{Amount: -1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != domain.ErrInvalidAmount.Code {
		t.Errorf("code = %s, want INVALID_AMOUNT", e.Code)
	}
}

func TestCompleteTask_Duplicate(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	rec := f.do(t, http.MethodPost, "/api/tasks/daily-7/complete", "u1", completeTaskRequest{Reward: 25})
	if rec.Code != http.StatusOK {
		t.Fatalf("first completion: status %d body %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodPost, "/api/tasks/daily-7/complete", "u1", completeTaskRequest{Reward: 25})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != domain.ErrTaskAlreadyDone.Code {
		t.Errorf("code = %s, want TASK_ALREADY_COMPLETED", e.Code)
	}
}

func TestWithdrawalFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	// Fund to a balance of 50, then withdraw it.
	rec := f.do(t, http.MethodPost, "/api/earnings/coins", "u1", addCoinsRequest{Amount: 1000})
	if rec.Code != http.StatusOK {
		t.Fatalf("funding: status %d body %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodPost, "/api/withdrawals", "u1", withdrawalRequest{
		Method: "bkash", AccountNumber: "01712345678", Amount: 50,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var wd domain.Withdrawal
	if err := json.Unmarshal(rec.Body.Bytes(), &wd); err != nil {
		t.Fatal(err)
	}
	if wd.Status != domain.WithdrawalPending {
		t.Errorf("status = %s, want pending", wd.Status)
	}

	rec = f.do(t, http.MethodGet, "/api/withdrawals", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var list struct {
		Withdrawals []domain.Withdrawal `json:"withdrawals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Withdrawals) != 1 || list.Withdrawals[0].ID != wd.ID {
		t.Errorf("list = %+v, want the created withdrawal", list.Withdrawals)
	}
}

func TestWithdrawal_BadAccountNumber(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")

	rec := f.do(t, http.MethodPost, "/api/withdrawals", "u1", withdrawalRequest{
		Method: "bkash", AccountNumber: "12345", Amount: 50,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != domain.ErrInvalidAccountNumber.Code {
		t.Errorf("code = %s, want INVALID_ACCOUNT_NUMBER", e.Code)
	}
}

func TestOfflineActionsQueued(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")
	f.monitor.SetOnline(false)

	rec := f.do(t, http.MethodPost, "/api/earnings/checkin", "u1", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var res struct {
		Queued bool `json:"queued"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Queued {
		t.Error("response not marked queued")
	}

	depth, err := f.queue.Depth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}

	// Account is untouched until replay.
	recAcc := f.do(t, http.MethodGet, "/api/account", "u1", nil)
	var acc domain.Account
	if err := json.Unmarshal(recAcc.Body.Bytes(), &acc); err != nil {
		t.Fatal(err)
	}
	if acc.Coins != 0 {
		t.Errorf("coins = %d while offline, want 0", acc.Coins)
	}
}

func TestTransactionsView(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")
	f.do(t, http.MethodPost, "/api/earnings/coins", "u1", addCoinsRequest{Amount: 100})
	f.do(t, http.MethodPost, "/api/earnings/spin", "u1", nil)

	rec := f.do(t, http.MethodGet, "/api/transactions?limit=10", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(res.Transactions))
	}
	kinds := map[domain.TransactionKind]bool{}
	for _, tx := range res.Transactions {
		kinds[tx.Kind] = true
	}
	if !kinds[domain.TxVideoReward] || !kinds[domain.TxSpinWheel] {
		t.Errorf("kinds = %v, want video_reward and spin_wheel", kinds)
	}
}

func TestLimitsView(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "u1")
	f.do(t, http.MethodPost, "/api/earnings/spin", "u1", nil)

	rec := f.do(t, http.MethodGet, "/api/limits/spin", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res struct {
		Action    string `json:"action"`
		Remaining int    `json:"remaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Action != "spin" || res.Remaining != 1 {
		t.Errorf("limits = %+v, want spin/1", res)
	}
}

func TestConfigView(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/config", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res struct {
		Earning    domain.EarningRates       `json:"earning"`
		Withdrawal domain.WithdrawalSettings `json:"withdrawal"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Earning.CoinToBDTRate != 20 || res.Withdrawal.MinAmount != 50 {
		t.Errorf("config = %+v, want deployment defaults", res)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
