package handler

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"offline-payment-engine/internal/adapter/http/middleware"
	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
	"offline-payment-engine/internal/core/ports/mocks"
	"offline-payment-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var alice = domain.NewSession("alice")

// newTestContext builds a gin context with an optional JSON body and the
// session middleware.JWTAuth would have bound.
func newTestContext(method, path string, body interface{}, session *domain.Session) (*gin.Context, *httptest.ResponseRecorder) {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	if session != nil {
		c.Set(middleware.CtxSession, *session)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func sampleEntry(direction domain.Direction) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:                  uuid.New(),
		IdentityID:          "alice",
		JournalID:           uuid.New(),
		CounterpartyAddress: "payee@demo",
		Amount:              250,
		Direction:           direction,
		Status:              domain.LedgerStatusQueued,
		Mode:                domain.LedgerModeOffline,
		Nonce:               "n-1",
		Timestamp:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- Identity Handler Tests ---

func TestIdentity_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockIdentity := mocks.NewMockIdentityService(ctrl)
	h := NewIdentityHandler(mockIdentity)

	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	mockIdentity.EXPECT().GetOrCreate(gomock.Any(), alice).Return(&domain.Identity{
		IdentityID: "alice",
		PublicKey:  pub,
		Address:    "abc@demo",
	}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/identity", nil, &alice)
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "abc@demo", data["address"])
	assert.Len(t, data["public_key"], 64)
}

func TestIdentity_NoSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewIdentityHandler(mocks.NewMockIdentityService(ctrl))

	c, w := newTestContext(http.MethodGet, "/api/v1/identity", nil, nil)
	h.Get(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeInvalidToken, decodeErrorCode(t, w))
}

// --- Handshake Handler Tests ---

func TestIssueRequest_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHS := mocks.NewMockHandshakeService(ctrl)
	mockCodec := mocks.NewMockHandshakeCodec(ctrl)
	h := NewHandshakeHandler(mockHS, mockCodec, 256)

	expires := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	mockHS.EXPECT().IssueRequest(gomock.Any(), alice, ports.IssueRequestInput{
		Amount:      250,
		IntentLabel: "coffee",
		IssuerName:  "Corner Shop",
		TTL:         90 * time.Second,
	}).Return(&domain.PaymentRequest{Nonce: "n-1", Amount: 250, ExpiresAt: expires}, "ENCODED", nil)
	mockCodec.EXPECT().RenderQR("ENCODED", 256).Return([]byte{0x89, 'P', 'N', 'G'}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/requests", map[string]interface{}{
		"amount":       250,
		"intent_label": " coffee ",
		"issuer_name":  "Corner Shop",
		"ttl_seconds":  90,
		"qr":           true,
	}, &alice)
	h.IssueRequest(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "ENCODED", data["encoded"])
	assert.Equal(t, "n-1", data["nonce"])
	assert.Equal(t, "2026-03-01T12:05:00Z", data["expires_at"])
	assert.Equal(t, "iVBORw==", data["qr_png"])
}

func TestIssueRequest_SignedTextIsNotEscaped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHS := mocks.NewMockHandshakeService(ctrl)
	h := NewHandshakeHandler(mockHS, mocks.NewMockHandshakeCodec(ctrl), 256)

	label := strings.Repeat("&", 256)
	mockHS.EXPECT().IssueRequest(gomock.Any(), alice, ports.IssueRequestInput{
		Amount:      250,
		IntentLabel: label,
		IssuerName:  "Fish & Chips",
	}).Return(&domain.PaymentRequest{Nonce: "n-1", Amount: 250}, "ENCODED", nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/requests", map[string]interface{}{
		"amount":       250,
		"intent_label": label,
		"issuer_name":  " Fish & Chips ",
	}, &alice)
	h.IssueRequest(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestIssueRequest_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewHandshakeHandler(mocks.NewMockHandshakeService(ctrl), mocks.NewMockHandshakeCodec(ctrl), 256)

	c, w := newTestContext(http.MethodPost, "/api/v1/requests", map[string]interface{}{"amount": 0}, &alice)
	h.IssueRequest(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueRequest_QRFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHS := mocks.NewMockHandshakeService(ctrl)
	mockCodec := mocks.NewMockHandshakeCodec(ctrl)
	h := NewHandshakeHandler(mockHS, mockCodec, 256)

	mockHS.EXPECT().IssueRequest(gomock.Any(), alice, gomock.Any()).
		Return(&domain.PaymentRequest{Nonce: "n-1", Amount: 5}, "ENCODED", nil)
	mockCodec.EXPECT().RenderQR("ENCODED", 256).Return(nil, errors.New("too large"))

	c, w := newTestContext(http.MethodPost, "/api/v1/requests", map[string]interface{}{"amount": 5, "qr": true}, &alice)
	h.IssueRequest(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAcceptRequest_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHS := mocks.NewMockHandshakeService(ctrl)
	h := NewHandshakeHandler(mockHS, mocks.NewMockHandshakeCodec(ctrl), 256)

	entry := sampleEntry(domain.DirectionDebit)
	mockHS.EXPECT().AcceptRequest(gomock.Any(), alice, ports.AcceptRequestInput{
		Encoded:   "AQID",
		PayerName: "Alice",
		Offline:   true,
	}).Return(&ports.AcceptResult{Encoded: "RECEIPT", Entry: entry}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/requests/accept", map[string]interface{}{
		"encoded":    "AQID",
		"payer_name": "Alice",
		"offline":    true,
	}, &alice)
	h.AcceptRequest(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "RECEIPT", data["encoded"])
	assert.Nil(t, data["qr_png"])
	tx := data["transaction"].(map[string]interface{})
	assert.Equal(t, "debit", tx["direction"])
	assert.Equal(t, "queued", tx["status"])
	assert.Equal(t, float64(250), tx["amount"])
}

func TestAcceptRequest_RejectsNonTransportPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewHandshakeHandler(mocks.NewMockHandshakeService(ctrl), mocks.NewMockHandshakeCodec(ctrl), 256)

	c, w := newTestContext(http.MethodPost, "/api/v1/requests/accept", map[string]interface{}{
		"encoded": "not base64url!",
	}, &alice)
	h.AcceptRequest(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcceptRequest_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bad signature", apperror.ErrBadSignature(), http.StatusUnprocessableEntity, apperror.CodeBadSignature},
		{"expired", apperror.ErrExpired(), http.StatusGone, apperror.CodeExpired},
		{"replayed", apperror.ErrNonceReplayed(), http.StatusConflict, apperror.CodeNonceReplayed},
		{"insufficient allowance", apperror.ErrInsufficientOfflineAllowance(), http.StatusPaymentRequired, apperror.CodeInsufficientOfflineAllowance},
		{"lease timeout", apperror.ErrLeaseTimeout(context.DeadlineExceeded), http.StatusServiceUnavailable, apperror.CodeLeaseTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockHS := mocks.NewMockHandshakeService(ctrl)
			h := NewHandshakeHandler(mockHS, mocks.NewMockHandshakeCodec(ctrl), 256)
			mockHS.EXPECT().AcceptRequest(gomock.Any(), alice, gomock.Any()).Return(nil, tc.err)

			c, w := newTestContext(http.MethodPost, "/api/v1/requests/accept", map[string]interface{}{"encoded": "AQID"}, &alice)
			h.AcceptRequest(c)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeErrorCode(t, w))
		})
	}
}

func TestConfirmReceipt_WithCredit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHS := mocks.NewMockHandshakeService(ctrl)
	h := NewHandshakeHandler(mockHS, mocks.NewMockHandshakeCodec(ctrl), 256)

	approved := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	receipt := &domain.PaymentReceipt{
		OriginalRequest: domain.UnsignedRequest{Nonce: "n-1", Amount: 250},
		PayerAddress:    "payer@demo",
		PayerName:       "Alice",
		ApprovedAt:      approved,
	}
	mockHS.EXPECT().ConfirmReceipt(gomock.Any(), alice, ports.ConfirmReceiptInput{Encoded: "AQID", Credit: true}).
		Return(&ports.ConfirmResult{Receipt: receipt, Entry: sampleEntry(domain.DirectionCredit)}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/receipts/confirm", map[string]interface{}{
		"encoded": "AQID",
		"credit":  true,
	}, &alice)
	h.ConfirmReceipt(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "payer@demo", data["payer_address"])
	assert.Equal(t, "2026-03-01T12:01:00Z", data["approved_at"])
	tx := data["transaction"].(map[string]interface{})
	assert.Equal(t, "credit", tx["direction"])
}

func TestConfirmReceipt_VerifyOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHS := mocks.NewMockHandshakeService(ctrl)
	h := NewHandshakeHandler(mockHS, mocks.NewMockHandshakeCodec(ctrl), 256)

	mockHS.EXPECT().ConfirmReceipt(gomock.Any(), alice, ports.ConfirmReceiptInput{Encoded: "AQID"}).
		Return(&ports.ConfirmResult{Receipt: &domain.PaymentReceipt{}}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/receipts/confirm", map[string]interface{}{"encoded": "AQID"}, &alice)
	h.ConfirmReceipt(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decodeData(t, w), "transaction")
}

func TestConfirmReceipt_NotForTerminal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockHS := mocks.NewMockHandshakeService(ctrl)
	h := NewHandshakeHandler(mockHS, mocks.NewMockHandshakeCodec(ctrl), 256)
	mockHS.EXPECT().ConfirmReceipt(gomock.Any(), alice, gomock.Any()).Return(nil, apperror.ErrReceiptNotForTerminal())

	c, w := newTestContext(http.MethodPost, "/api/v1/receipts/confirm", map[string]interface{}{"encoded": "AQID"}, &alice)
	h.ConfirmReceipt(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeReceiptNotForTerminal, decodeErrorCode(t, w))
}

// --- Wallet Handler Tests ---

func TestWallet_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mockReporting, mocks.NewMockOfflineWalletService(ctrl), mocks.NewMockFundingService(ctrl))

	mockReporting.EXPECT().GetAccount(gomock.Any(), alice).Return(&domain.Account{
		IdentityID:  "alice",
		MainBalance: 1000,
		Offline:     domain.OfflineWalletState{Loaded: true, Balance: 500, InitialLoadAmount: 500},
	}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/wallet", nil, &alice)
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1000), data["main_balance"])
	assert.Equal(t, float64(500), data["available_balance"])
}

func TestWallet_LoadOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOffline := mocks.NewMockOfflineWalletService(ctrl)
	h := NewWalletHandler(mocks.NewMockReportingService(ctrl), mockOffline, mocks.NewMockFundingService(ctrl))

	mockOffline.EXPECT().Load(gomock.Any(), alice, int64(300)).Return(&domain.Account{
		MainBalance: 1000,
		Offline:     domain.OfflineWalletState{Loaded: true, Balance: 300, InitialLoadAmount: 300},
	}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/wallet/offline/load", map[string]interface{}{"amount": 300}, &alice)
	h.LoadOffline(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	offline := data["offline"].(map[string]interface{})
	assert.Equal(t, float64(300), offline["balance"])
	assert.Equal(t, float64(700), data["available_balance"])
}

func TestWallet_LoadOffline_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOffline := mocks.NewMockOfflineWalletService(ctrl)
	h := NewWalletHandler(mocks.NewMockReportingService(ctrl), mockOffline, mocks.NewMockFundingService(ctrl))
	mockOffline.EXPECT().Load(gomock.Any(), alice, int64(5000)).Return(nil, apperror.ErrInsufficientFunds())

	c, w := newTestContext(http.MethodPost, "/api/v1/wallet/offline/load", map[string]interface{}{"amount": 5000}, &alice)
	h.LoadOffline(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, apperror.CodeInsufficientFunds, decodeErrorCode(t, w))
}

func TestWallet_UnloadOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOffline := mocks.NewMockOfflineWalletService(ctrl)
	h := NewWalletHandler(mocks.NewMockReportingService(ctrl), mockOffline, mocks.NewMockFundingService(ctrl))
	mockOffline.EXPECT().Unload(gomock.Any(), alice).Return(int64(250), nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/wallet/offline/unload", nil, &alice)
	h.UnloadOffline(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(250), decodeData(t, w)["released"])
}

func TestWallet_Deposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockFunding := mocks.NewMockFundingService(ctrl)
	h := NewWalletHandler(mocks.NewMockReportingService(ctrl), mocks.NewMockOfflineWalletService(ctrl), mockFunding)

	entry := sampleEntry(domain.DirectionCredit)
	entry.Amount = 1000
	entry.Mode = domain.LedgerModeOnline
	entry.Status = domain.LedgerStatusSettled
	mockFunding.EXPECT().Deposit(gomock.Any(), alice, ports.DepositInput{
		Amount:    1000,
		Reference: "bank-tx-1",
		Source:    "bank@demo",
	}).Return(entry, nil)

	body := map[string]interface{}{"amount": 1000, "reference": " bank-tx-1 ", "source": "bank@demo"}
	c, w := newTestContext(http.MethodPost, "/api/v1/wallet/deposit", body, &alice)
	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1000), data["amount"])
	assert.Equal(t, "settled", data["status"])
	assert.Equal(t, "online", data["mode"])
}

func TestWallet_Deposit_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockReportingService(ctrl), mocks.NewMockOfflineWalletService(ctrl), mocks.NewMockFundingService(ctrl))

	c, w := newTestContext(http.MethodPost, "/api/v1/wallet/deposit", map[string]interface{}{"amount": 0, "reference": "x"}, &alice)
	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Transaction Handler Tests ---

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransactionHandler(mockReporting)

	mockReporting.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
			assert.Equal(t, "alice", params.IdentityID)
			assert.Equal(t, 2, params.Page)
			assert.Equal(t, 10, params.PageSize)
			require.NotNil(t, params.Status)
			assert.Equal(t, domain.LedgerStatusQueued, *params.Status)
			require.NotNil(t, params.From)
			assert.Equal(t, int64(1700000000), params.From.Unix())
			return []domain.LedgerEntry{*sampleEntry(domain.DirectionDebit)}, 11, nil
		},
	)

	c, w := newTestContext(http.MethodGet, "/api/v1/transactions?page=2&page_size=10&status=queued&from=1700000000", nil, &alice)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestListTransactions_InvalidFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTransactionHandler(mocks.NewMockReportingService(ctrl))

	c, w := newTestContext(http.MethodGet, "/api/v1/transactions?direction=sideways", nil, &alice)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/api/v1/transactions?status=pending", nil, &alice)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTransactions_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransactionHandler(mockReporting)
	mockReporting.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(nil, int64(0), errors.New("db down"))

	c, w := newTestContext(http.MethodGet, "/api/v1/transactions", nil, &alice)
	h.List(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSummary_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransactionHandler(mockReporting)
	mockReporting.EXPECT().Summary(gomock.Any(), alice, "week").Return(&ports.LedgerStats{
		Total: 4, Queued: 1, Settled: 3, Debited: 700, Credited: 100,
	}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/transactions/summary?period=week", nil, &alice)
	h.Summary(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "week", data["period"])
	assert.Equal(t, float64(700), data["debited"])
}

// --- Journal Handler Tests ---

func TestJournal_ListIncomplete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockJournal := mocks.NewMockJournalService(ctrl)
	h := NewJournalHandler(mockJournal, nil)

	entry := domain.JournalEntry{
		JournalID:  uuid.New(),
		IdentityID: "alice",
		Intent:     domain.JournalIntent{Entry: *sampleEntry(domain.DirectionDebit)},
		State:      domain.JournalStateApplied,
	}
	mockJournal.EXPECT().ScanIncomplete(gomock.Any(), alice).Return([]domain.JournalEntry{entry}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/journal/incomplete", nil, &alice)
	h.ListIncomplete(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "applied", resp.Data[0]["state"])
	assert.Equal(t, entry.JournalID.String(), resp.Data[0]["id"])
}

func TestJournal_Recover(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecovery := mocks.NewMockRecoveryRunner(ctrl)
	h := NewJournalHandler(mocks.NewMockJournalService(ctrl), mockRecovery)
	mockRecovery.EXPECT().Run(gomock.Any(), alice).Return(ports.RecoveryReport{
		IdentityID: "alice", Scanned: 2, Recovered: 1, Discarded: 1,
	}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/journal/recover", nil, &alice)
	h.Recover(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2), data["scanned"])
	assert.Equal(t, float64(1), data["recovered"])
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgres").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	rd := mocks.NewMockHealthChecker(ctrl)
	rd.EXPECT().Name().Return("redis").AnyTimes()
	rd.EXPECT().Ping(gomock.Any()).Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(pg, rd)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "unhealthy", deps["postgres"].(map[string]interface{})["status"])
	assert.Equal(t, "healthy", deps["redis"].(map[string]interface{})["status"])
}

// --- Swagger Tests ---

func TestSwaggerUI(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger", nil)

	SwaggerUI(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "swagger-ui")
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

func TestSwaggerSpec_Embedded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/requests/accept")
}

func TestSwaggerSpec_NotLoaded(t *testing.T) {
	SetSwaggerSpec(nil)
	defer SetSwaggerSpec(embeddedSpec)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
