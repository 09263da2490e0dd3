package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/tollgate-ai/tollgate/internal/apikey/domain"
	apikeyrepository "github.com/tollgate-ai/tollgate/internal/apikey/repository"
	"github.com/tollgate-ai/tollgate/internal/clock"
	"github.com/tollgate-ai/tollgate/internal/config"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	paymentrepository "github.com/tollgate-ai/tollgate/internal/payment/repository"
	"github.com/tollgate-ai/tollgate/internal/workspacectx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeEngine struct {
	quoteResult  *enginedomain.QuoteResult
	payResult    *enginedomain.PayResult
	payErr       error
	verifyResult *enginedomain.VerifyResult
	verifyErr    error

	lastProof       string
	sawWorkspaceCtx bool
}

func (f *fakeEngine) Quote(ctx context.Context, req enginedomain.QuoteRequest) (*enginedomain.QuoteResult, error) {
	_, f.sawWorkspaceCtx = workspacectx.WorkspaceIDFromContext(ctx)
	return f.quoteResult, nil
}

func (f *fakeEngine) Pay(ctx context.Context, req enginedomain.PayRequest) (*enginedomain.PayResult, error) {
	if f.payErr != nil {
		return nil, f.payErr
	}
	return f.payResult, nil
}

func (f *fakeEngine) Verify(ctx context.Context, req enginedomain.VerifyRequest) (*enginedomain.VerifyResult, error) {
	f.lastProof = req.Proof
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyResult, nil
}

func (f *fakeEngine) VerifyByInvoice(ctx context.Context, invoiceID string) (*enginedomain.VerifyResult, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyResult, nil
}

func (f *fakeEngine) ResolveStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

type fakeTreasury struct{}

func (fakeTreasury) Credit(ctx context.Context, workspaceID snowflake.ID, token string, amount int64) (int64, error) {
	return amount, nil
}

func (fakeTreasury) Balance(ctx context.Context, workspaceID snowflake.ID, token string) (int64, error) {
	return 500000, nil
}

func setupServer(t *testing.T, engineSvc enginedomain.Service) (*Server, string) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.Exec(`CREATE TABLE api_keys (
		id INTEGER PRIMARY KEY,
		workspace_id INTEGER NOT NULL,
		key_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_used_at DATETIME,
		expires_at DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("prepare schema: %v", err)
	}
	err = db.Exec(`CREATE TABLE payments (
		id INTEGER PRIMARY KEY,
		invoice_id TEXT NOT NULL UNIQUE,
		quote_id INTEGER NOT NULL,
		workspace_id INTEGER NOT NULL,
		api_key_id INTEGER NOT NULL,
		provider_host TEXT NOT NULL,
		pay_to TEXT NOT NULL,
		original_amount INTEGER NOT NULL,
		original_currency TEXT NOT NULL,
		original_network TEXT,
		treasury_amount INTEGER NOT NULL,
		treasury_token TEXT NOT NULL,
		swap_sell_amount INTEGER,
		swap_sell_token TEXT,
		swap_buy_amount INTEGER,
		swap_buy_token TEXT,
		swap_fee INTEGER,
		swap_tx_hash TEXT,
		status TEXT NOT NULL,
		tx_hash TEXT,
		failure_reason TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("prepare schema: %v", err)
	}

	rawKey := "tgk_test_secret"
	now := time.Now().UTC()
	err = db.Exec(
		`INSERT INTO api_keys (id, workspace_id, key_id, name, key_hash, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		int64(101), int64(7), "tk_101", "agent", apikeydomain.HashAPIKey(rawKey), now, now,
	).Error
	if err != nil {
		t.Fatalf("seed api key: %v", err)
	}

	cfg := config.Config{
		Environment:   "test",
		TreasuryToken: "MNEE",
		ProofHeader:   "X-402-Payment-Proof",
	}
	log := zap.NewNop()

	engine := NewEngine(cfg, log)
	svc := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		DB:          db,
		Log:         log,
		Clock:       clock.NewFakeClock(now),
		APIKeyRepo:  apikeyrepository.Provide(),
		EngineSvc:   engineSvc,
		PaymentRepo: paymentrepository.Provide(),
		TreasurySvc: fakeTreasury{},
	})
	return svc, rawKey
}

func doJSON(t *testing.T, svc *Server, method, path, bearer string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	svc.Engine().ServeHTTP(w, req)
	return w
}

func TestQuoteRequiresAPIKey(t *testing.T) {
	fake := &fakeEngine{quoteResult: &enginedomain.QuoteResult{Allowed: true, QuoteID: "1"}}
	svc, rawKey := setupServer(t, fake)

	body := map[string]any{"invoice": map[string]any{
		"invoiceId": "inv-1", "amount": "3", "currency": "MNEE", "payTo": "addr",
	}}

	w := doJSON(t, svc, http.MethodPost, "/v1/quote", "", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated quote status = %d, want 401", w.Code)
	}

	w = doJSON(t, svc, http.MethodPost, "/v1/quote", "wrong-key", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad key quote status = %d, want 401", w.Code)
	}

	w = doJSON(t, svc, http.MethodPost, "/v1/quote", rawKey, body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quote status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !fake.sawWorkspaceCtx {
		t.Fatalf("engine did not receive workspace identity")
	}

	var resp quoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Allowed || resp.QuoteID != "1" {
		t.Fatalf("quote response = %+v", resp)
	}
}

func TestQuoteDenialIsHTTP200(t *testing.T) {
	fake := &fakeEngine{quoteResult: &enginedomain.QuoteResult{
		Allowed: false,
		Reason:  enginedomain.ReasonAgentDailyLimit,
		Message: "daily spending limit would be exceeded",
	}}
	svc, rawKey := setupServer(t, fake)

	body := map[string]any{"invoice": map[string]any{
		"invoiceId": "inv-1", "amount": "3", "currency": "MNEE", "payTo": "addr",
	}}
	w := doJSON(t, svc, http.MethodPost, "/v1/quote", rawKey, body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("denied quote status = %d, want 200", w.Code)
	}

	var resp quoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Allowed || resp.Reason != enginedomain.ReasonAgentDailyLimit {
		t.Fatalf("denial response = %+v", resp)
	}
}

func TestPayErrorMapsToStatus(t *testing.T) {
	fake := &fakeEngine{payErr: enginedomain.NewError(enginedomain.ReasonInsufficientBalance, "treasury balance is insufficient")}
	svc, rawKey := setupServer(t, fake)

	w := doJSON(t, svc, http.MethodPost, "/v1/pay", rawKey, map[string]string{"quoteId": "1"}, nil)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("pay status = %d, want 402: %s", w.Code, w.Body.String())
	}

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Reason != enginedomain.ReasonInsufficientBalance {
		t.Fatalf("error reason = %s, want INSUFFICIENT_BALANCE", resp.Error.Reason)
	}
}

func TestVerifyReadsProofHeader(t *testing.T) {
	fake := &fakeEngine{verifyResult: &enginedomain.VerifyResult{
		Verified:  true,
		PaymentID: "55",
		Amount:    "3.00000",
		Token:     "MNEE",
	}}
	svc, _ := setupServer(t, fake)

	// No API key: the proof itself is the credential.
	w := doJSON(t, svc, http.MethodPost, "/v1/verify", "", nil, map[string]string{
		"X-402-Payment-Proof": "proof-token",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if fake.lastProof != "proof-token" {
		t.Fatalf("engine saw proof %q, want header value", fake.lastProof)
	}

	var resp verifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Verified || resp.PaymentID != "55" {
		t.Fatalf("verify response = %+v", resp)
	}
}

func TestVerifyFailureShape(t *testing.T) {
	fake := &fakeEngine{verifyErr: enginedomain.NewError(enginedomain.ReasonProofExpired, "payment proof has expired")}
	svc, _ := setupServer(t, fake)

	w := doJSON(t, svc, http.MethodPost, "/v1/verify", "", map[string]string{"proof": "stale"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", w.Code)
	}

	var resp verifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Verified || resp.ErrorCode != enginedomain.ReasonProofExpired {
		t.Fatalf("verify failure response = %+v", resp)
	}
}

func TestGetBalance(t *testing.T) {
	svc, rawKey := setupServer(t, &fakeEngine{})

	w := doJSON(t, svc, http.MethodGet, "/v1/treasury/balance", rawKey, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp balanceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "MNEE" || resp.Minor != 500000 || resp.Balance != "5.00000" {
		t.Fatalf("balance response = %+v", resp)
	}
}
