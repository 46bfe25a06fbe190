package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"raffle/internal/credential"
	"raffle/internal/oracle"
	"raffle/internal/raffle"
	"raffle/internal/storage"
	"raffle/internal/token"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var saleStart = time.Unix(1_700_000_000, 0)

type testServer struct {
	router    *gin.Engine
	clock     *clockwork.FakeClock
	authority solana.PrivateKey
}

func newTestServer(t *testing.T, airdropEnabled bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := storage.NewSqliteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := clockwork.NewFakeClockAt(saleStart)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ledger := token.NewLedger()
	program, err := raffle.New(raffle.Config{
		Clock:       clock,
		Storage:     s,
		Tokens:      ledger,
		Credentials: credential.NewIssuer(),
		Oracle:      oracle.NewVRF(key, clock),
	})
	require.NoError(t, err)

	handler, err := NewHandler(Config{
		Program:        program,
		Ledger:         ledger,
		Storage:        s,
		Clock:          clock,
		AirdropEnabled: airdropEnabled,
	})
	require.NoError(t, err)

	return &testServer{
		router:    NewRouter(handler),
		clock:     clock,
		authority: newIdentity(t),
	}
}

func newIdentity(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func encode(t *testing.T, body any) []byte {
	t.Helper()
	if body == nil {
		return nil
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	return encoded
}

// signature builds the headers key would attach to a request sent at timestamp.
func signature(t *testing.T, key solana.PrivateKey, method, path string, timestamp time.Time, body []byte) http.Header {
	t.Helper()
	sig, err := SignRequest(key, method, path, timestamp.Unix(), body)
	require.NoError(t, err)

	header := http.Header{}
	header.Set(SignatureHeader, sig.String())
	header.Set(TimestampHeader, strconv.FormatInt(timestamp.Unix(), 10))
	return header
}

func (s *testServer) send(t *testing.T, method, path string, body []byte, header http.Header) (int, map[string]any) {
	t.Helper()

	request := httptest.NewRequest(method, path, bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	for name, values := range header {
		request.Header[name] = values
	}
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, request)

	var response map[string]any
	if recorder.Body.Len() > 0 && recorder.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	}
	return recorder.Code, response
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	return s.send(t, method, path, encode(t, body), nil)
}

func (s *testServer) signed(t *testing.T, key solana.PrivateKey, method, path string, body any) (int, map[string]any) {
	t.Helper()
	encoded := encode(t, body)
	return s.send(t, method, path, encoded, signature(t, key, method, path, s.clock.Now(), encoded))
}

func (s *testServer) open(t *testing.T) {
	t.Helper()
	authority := s.authority.PublicKey().String()

	code, body := s.signed(t, s.authority, http.MethodPost, "/config", gin.H{
		"authority":   authority,
		"saleStart":   saleStart.Unix(),
		"saleEnd":     saleStart.Add(time.Minute).Unix(),
		"ticketPrice": 100,
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, authority, body["authority"])
	assert.Equal(t, float64(100), body["ticketPrice"])
	assert.Equal(t, float64(0), body["roundId"])

	code, _ = s.signed(t, s.authority, http.MethodPost, "/lottery/initialize", gin.H{"payer": authority})
	require.Equal(t, http.StatusCreated, code)
}

// fund airdrops amount to a fresh identity and returns its key.
func (s *testServer) fund(t *testing.T, amount uint64) solana.PrivateKey {
	t.Helper()
	key := newIdentity(t)
	code, body := s.do(t, http.MethodPost, "/accounts/"+key.PublicKey().String()+"/airdrop", gin.H{"amount": amount})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(amount), body["balance"])
	return key
}

func TestHandler_Lifecycle(t *testing.T) {
	server := newTestServer(t, true)

	code, body := server.do(t, http.MethodGet, "/lottery", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotInitialized", body["code"])

	code, _ = server.do(t, http.MethodGet, "/config", nil)
	assert.Equal(t, http.StatusNotFound, code)

	server.open(t)

	code, body = server.do(t, http.MethodGet, "/lottery", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Open", body["state"])
	assert.Equal(t, float64(100), body["ticketPrice"])

	code, body = server.do(t, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, server.authority.PublicKey().String(), body["authority"])

	key := server.fund(t, 1000)
	buyer := key.PublicKey()

	code, body = server.signed(t, key, http.MethodPost, "/lottery/tickets", gin.H{"purchaser": buyer.String()})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(0), body["sequenceIndex"])
	assert.Equal(t, "Token Lottery Ticket #0", body["name"])
	assert.Equal(t, true, body["verified"])
	ticket := body["address"].(string)

	code, body = server.do(t, http.MethodGet, "/accounts/"+buyer.String(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(900), body["balance"])
	assert.Len(t, body["tickets"], 1)

	code, body = server.do(t, http.MethodGet, "/rounds/0/tickets/0", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, ticket, body["address"])
	assert.Equal(t, buyer.String(), body["owner"])

	code, body = server.do(t, http.MethodGet, "/rounds/0/tickets", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["tickets"], 1)

	code, body = server.signed(t, key, http.MethodPost, "/lottery/claim", gin.H{"claimant": buyer.String(), "ticket": ticket})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "WinnerNotChosen", body["code"])

	code, body = server.signed(t, server.authority, http.MethodPost, "/lottery/commit", gin.H{"caller": server.authority.PublicKey().String()})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SaleNotEnded", body["code"])

	code, body = server.do(t, http.MethodGet, "/events?type=TicketBought", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["events"], 1)
}

func TestHandler_Errors(t *testing.T) {
	server := newTestServer(t, false)
	server.open(t)

	authority := server.authority.PublicKey().String()
	stranger := newIdentity(t)

	tests := []struct {
		name   string
		key    solana.PrivateKey
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "config twice",
			key:    server.authority,
			method: http.MethodPost,
			path:   "/config",
			body:   gin.H{"authority": authority, "saleStart": 1, "saleEnd": 2, "ticketPrice": 1},
			status: http.StatusConflict,
			code:   "AlreadyInitialized",
		},
		{
			name:   "invalid window",
			key:    server.authority,
			method: http.MethodPost,
			path:   "/lottery/restart",
			body:   gin.H{"caller": authority, "saleStart": 2, "saleEnd": 1, "ticketPrice": 1},
			status: http.StatusBadRequest,
			code:   "InvalidSaleWindow",
		},
		{
			name:   "restart by stranger",
			key:    stranger,
			method: http.MethodPost,
			path:   "/lottery/restart",
			body:   gin.H{"caller": stranger.PublicKey().String(), "saleStart": 1, "saleEnd": 2, "ticketPrice": 1},
			status: http.StatusForbidden,
			code:   "Unauthorized",
		},
		{
			name:   "commit by stranger",
			key:    stranger,
			method: http.MethodPost,
			path:   "/lottery/commit",
			body:   gin.H{"caller": stranger.PublicKey().String()},
			status: http.StatusForbidden,
			code:   "Unauthorized",
		},
		{
			name:   "unfunded purchaser",
			key:    stranger,
			method: http.MethodPost,
			path:   "/lottery/tickets",
			body:   gin.H{"purchaser": stranger.PublicKey().String()},
			status: http.StatusUnprocessableEntity,
			code:   "InvalidAccount",
		},
		{
			name:   "malformed key",
			method: http.MethodPost,
			path:   "/lottery/tickets",
			body:   gin.H{"purchaser": "not-a-key"},
			status: http.StatusBadRequest,
			code:   "BadRequest",
		},
		{
			name:   "missing field",
			key:    server.authority,
			method: http.MethodPost,
			path:   "/lottery/claim",
			body:   gin.H{"claimant": authority},
			status: http.StatusBadRequest,
			code:   "BadRequest",
		},
		{
			name:   "bad client seed",
			key:    server.authority,
			method: http.MethodPost,
			path:   "/lottery/commit",
			body:   gin.H{"caller": authority, "clientSeed": "abcd"},
			status: http.StatusBadRequest,
			code:   "BadRequest",
		},
		{
			name:   "unknown ticket",
			method: http.MethodGet,
			path:   "/rounds/0/tickets/7",
			status: http.StatusNotFound,
			code:   "TicketNotFound",
		},
		{
			name:   "bad round",
			method: http.MethodGet,
			path:   "/rounds/x/tickets",
			status: http.StatusBadRequest,
			code:   "BadRequest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				code int
				body map[string]any
			)
			if tt.key != nil {
				code, body = server.signed(t, tt.key, tt.method, tt.path, tt.body)
			} else {
				code, body = server.do(t, tt.method, tt.path, tt.body)
			}
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	t.Run("airdrop disabled", func(t *testing.T) {
		code, _ := server.do(t, http.MethodPost, "/accounts/"+newIdentity(t).PublicKey().String()+"/airdrop", gin.H{"amount": 1})
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestHandler_Signatures(t *testing.T) {
	server := newTestServer(t, true)
	server.open(t)

	authority := server.authority.PublicKey().String()
	stranger := newIdentity(t)
	restart := encode(t, gin.H{"caller": authority, "saleStart": saleStart.Unix(), "saleEnd": saleStart.Add(time.Hour).Unix(), "ticketPrice": 1})
	now := server.clock.Now()

	tests := []struct {
		name   string
		path   string
		body   []byte
		header http.Header
	}{
		{
			name: "unsigned",
			path: "/lottery/restart",
			body: restart,
		},
		{
			name:   "signed by another key",
			path:   "/lottery/restart",
			body:   restart,
			header: signature(t, stranger, http.MethodPost, "/lottery/restart", now, restart),
		},
		{
			name:   "body changed after signing",
			path:   "/lottery/restart",
			body:   encode(t, gin.H{"caller": authority, "saleStart": saleStart.Unix(), "saleEnd": saleStart.Add(time.Hour).Unix(), "ticketPrice": 2}),
			header: signature(t, server.authority, http.MethodPost, "/lottery/restart", now, restart),
		},
		{
			name:   "signed for another route",
			path:   "/lottery/restart",
			body:   restart,
			header: signature(t, server.authority, http.MethodPost, "/lottery/commit", now, restart),
		},
		{
			name:   "stale timestamp",
			path:   "/lottery/restart",
			body:   restart,
			header: signature(t, server.authority, http.MethodPost, "/lottery/restart", now.Add(-DefaultSignatureWindow-time.Second), restart),
		},
		{
			name:   "future timestamp",
			path:   "/lottery/restart",
			body:   restart,
			header: signature(t, server.authority, http.MethodPost, "/lottery/restart", now.Add(DefaultSignatureWindow+time.Second), restart),
		},
		{
			name:   "garbage signature",
			path:   "/lottery/restart",
			body:   restart,
			header: http.Header{SignatureHeader: {"not-base58!"}, TimestampHeader: {strconv.FormatInt(now.Unix(), 10)}},
		},
		{
			name:   "unsigned commit",
			path:   "/lottery/commit",
			body:   encode(t, gin.H{"caller": authority}),
			header: http.Header{TimestampHeader: {strconv.FormatInt(now.Unix(), 10)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := server.send(t, http.MethodPost, tt.path, tt.body, tt.header)
			assert.Equal(t, http.StatusForbidden, code)
			assert.Equal(t, "InvalidSignature", body["code"])
		})
	}

	t.Run("round untouched", func(t *testing.T) {
		code, body := server.do(t, http.MethodGet, "/lottery", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(0), body["roundId"])
		assert.Equal(t, float64(100), body["ticketPrice"])
	})

	t.Run("replayed purchase", func(t *testing.T) {
		key := server.fund(t, 1000)
		purchase := encode(t, gin.H{"purchaser": key.PublicKey().String()})
		header := signature(t, key, http.MethodPost, "/lottery/tickets", server.clock.Now(), purchase)

		code, _ := server.send(t, http.MethodPost, "/lottery/tickets", purchase, header)
		require.Equal(t, http.StatusCreated, code)

		code, body := server.send(t, http.MethodPost, "/lottery/tickets", purchase, header)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "ReplayedRequest", body["code"])

		code, body = server.do(t, http.MethodGet, "/accounts/"+key.PublicKey().String(), nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(900), body["balance"])
		assert.Len(t, body["tickets"], 1)
	})

	t.Run("same purchase signed again later", func(t *testing.T) {
		key := server.fund(t, 1000)
		server.clock.Advance(time.Second)

		code, _ := server.signed(t, key, http.MethodPost, "/lottery/tickets", gin.H{"purchaser": key.PublicKey().String()})
		require.Equal(t, http.StatusCreated, code)
		server.clock.Advance(time.Second)
		code, _ = server.signed(t, key, http.MethodPost, "/lottery/tickets", gin.H{"purchaser": key.PublicKey().String()})
		assert.Equal(t, http.StatusCreated, code)
	})
}

func TestNewHandler_Validate(t *testing.T) {
	_, err := NewHandler(Config{})
	assert.Error(t, err)
}

func TestHandler_Metrics(t *testing.T) {
	server := newTestServer(t, false)

	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "raffle_current_round")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusOf(raffle.KindOf(raffle.ErrSaleEnded)))
	assert.Equal(t, http.StatusConflict, statusOf(raffle.KindOf(raffle.ErrAlreadyClaimed)))
	assert.Equal(t, http.StatusForbidden, statusOf(raffle.KindOf(raffle.ErrNotWinner)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(raffle.KindOf(raffle.ErrInsufficientFunds)))
	assert.Equal(t, http.StatusNotFound, statusOf(raffle.KindOf(raffle.ErrTicketNotFound)))
	assert.Equal(t, http.StatusBadRequest, statusOf(raffle.KindOf(raffle.ErrInvalidTicketPrice)))
	assert.Equal(t, http.StatusInternalServerError, statusOf(raffle.KindUnknown))
}
