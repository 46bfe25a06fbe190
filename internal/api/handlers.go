package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"raffle/internal/raffle"
	"raffle/internal/storage"
	"raffle/internal/token"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Program *raffle.Program
	Ledger  *token.Ledger
	Storage storage.Storage
	Clock   clockwork.Clock

	AirdropEnabled bool
	// SignatureWindow bounds the difference between a request's X-Timestamp and the server clock.
	SignatureWindow time.Duration
}

func (c *Config) Validate() error {
	if c.Program == nil {
		return errors.New("program is required")
	}
	if c.Ledger == nil {
		return errors.New("ledger is required")
	}
	if c.Storage == nil {
		return errors.New("storage is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.SignatureWindow <= 0 {
		c.SignatureWindow = DefaultSignatureWindow
	}
	return nil
}

// Handler exposes the lottery program over HTTP. Every request that acts for
// an identity must carry that identity's ed25519 signature over the request.
type Handler struct {
	cfg Config
}

func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid api config: %w", err)
	}
	return &Handler{cfg: cfg}, nil
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/config", h.Configuration)
	router.POST("/config", h.InitializeConfig)

	lottery := router.Group("/lottery")
	lottery.GET("", h.Status)
	lottery.POST("/initialize", h.InitializeLottery)
	lottery.POST("/restart", h.RestartLottery)
	lottery.POST("/tickets", h.BuyTicket)
	lottery.POST("/commit", h.CommitWinner)
	lottery.POST("/claim", h.ClaimWinnings)

	router.GET("/rounds/:round/tickets", h.ListTickets)
	router.GET("/rounds/:round/tickets/:seq", h.LookupTicket)

	router.GET("/accounts/:address", h.Account)
	if h.cfg.AirdropEnabled {
		router.POST("/accounts/:address/airdrop", h.Airdrop)
	}

	router.GET("/events", h.Events)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type saleRequest struct {
	SaleStart   int64  `json:"saleStart"`
	SaleEnd     int64  `json:"saleEnd"`
	TicketPrice uint64 `json:"ticketPrice"`
}

func (r saleRequest) window() raffle.SaleWindow {
	return raffle.SaleWindow{Start: time.Unix(r.SaleStart, 0), End: time.Unix(r.SaleEnd, 0)}
}

type initializeConfigRequest struct {
	Authority string `json:"authority" binding:"required"`
	saleRequest
}

func (r *initializeConfigRequest) signer() (string, string) { return "authority", r.Authority }

func (h *Handler) InitializeConfig(c *gin.Context) {
	var request initializeConfigRequest
	authority, ok := h.bindSigned(c, &request)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.cfg.Program.InitializeConfig(ctx, authority, request.window(), request.TicketPrice); err != nil {
		respondError(c, err)
		return
	}

	config, err := h.cfg.Program.Configuration(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, config)
}

func (h *Handler) Configuration(c *gin.Context) {
	config, err := h.cfg.Program.Configuration(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

type initializeLotteryRequest struct {
	Payer string `json:"payer" binding:"required"`
}

func (r *initializeLotteryRequest) signer() (string, string) { return "payer", r.Payer }

func (h *Handler) InitializeLottery(c *gin.Context) {
	var request initializeLotteryRequest
	payer, ok := h.bindSigned(c, &request)
	if !ok {
		return
	}

	status, err := h.cfg.Program.InitializeLottery(c.Request.Context(), payer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, status)
}

type restartLotteryRequest struct {
	Caller string `json:"caller" binding:"required"`
	saleRequest
}

func (r *restartLotteryRequest) signer() (string, string) { return "caller", r.Caller }

func (h *Handler) RestartLottery(c *gin.Context) {
	var request restartLotteryRequest
	caller, ok := h.bindSigned(c, &request)
	if !ok {
		return
	}

	if _, err := h.cfg.Program.RestartLottery(c.Request.Context(), caller, request.window(), request.TicketPrice); err != nil {
		respondError(c, err)
		return
	}
	h.Status(c)
}

type buyTicketRequest struct {
	Purchaser string `json:"purchaser" binding:"required"`
}

func (r *buyTicketRequest) signer() (string, string) { return "purchaser", r.Purchaser }

func (h *Handler) BuyTicket(c *gin.Context) {
	var request buyTicketRequest
	purchaser, ok := h.bindSigned(c, &request)
	if !ok {
		return
	}

	ticket, err := h.cfg.Program.BuyTicket(c.Request.Context(), purchaser)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

type commitWinnerRequest struct {
	Caller string `json:"caller" binding:"required"`
	// ClientSeed is 32 bytes of hex. A random seed is used when empty.
	ClientSeed string `json:"clientSeed"`
}

func (r *commitWinnerRequest) signer() (string, string) { return "caller", r.Caller }

func (h *Handler) CommitWinner(c *gin.Context) {
	var request commitWinnerRequest
	caller, ok := h.bindSigned(c, &request)
	if !ok {
		return
	}

	seed, err := clientSeed(request.ClientSeed)
	if err != nil {
		badRequest(c, err)
		return
	}

	handle, err := h.cfg.Program.CommitWinner(c.Request.Context(), caller, seed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"randomnessHandle": handle})
}

type claimWinningsRequest struct {
	Claimant string `json:"claimant" binding:"required"`
	Ticket   string `json:"ticket" binding:"required"`
}

func (r *claimWinningsRequest) signer() (string, string) { return "claimant", r.Claimant }

func (h *Handler) ClaimWinnings(c *gin.Context) {
	var request claimWinningsRequest
	claimant, ok := h.bindSigned(c, &request)
	if !ok {
		return
	}
	ticket, ok := publicKey(c, "ticket", request.Ticket)
	if !ok {
		return
	}

	amount, err := h.cfg.Program.ClaimWinnings(c.Request.Context(), claimant, ticket)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount, "destination": claimant.String()})
}

func (h *Handler) Status(c *gin.Context) {
	status, err := h.cfg.Program.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) LookupTicket(c *gin.Context) {
	roundID, ok := uintParam(c, "round")
	if !ok {
		return
	}
	sequence, ok := uintParam(c, "seq")
	if !ok {
		return
	}

	ticket, err := h.cfg.Program.LookupTicket(c.Request.Context(), roundID, sequence)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) ListTickets(c *gin.Context) {
	roundID, ok := uintParam(c, "round")
	if !ok {
		return
	}

	tickets, err := h.cfg.Program.ListTickets(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roundId": roundID, "tickets": tickets})
}

func (h *Handler) Account(c *gin.Context) {
	account, ok := publicKey(c, "address", c.Param("address"))
	if !ok {
		return
	}

	ctx := c.Request.Context()
	balance, err := h.cfg.Ledger.Balance(ctx, h.cfg.Storage, account)
	if err != nil {
		respondError(c, err)
		return
	}
	tickets, err := h.cfg.Program.TicketsOwnedBy(ctx, account)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": account.String(),
		"balance": balance,
		"tickets": tickets,
	})
}

type airdropRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

func (h *Handler) Airdrop(c *gin.Context) {
	account, ok := publicKey(c, "address", c.Param("address"))
	if !ok {
		return
	}
	var request airdropRequest
	if !bind(c, &request) {
		return
	}

	var balance uint64
	err := h.cfg.Storage.Transaction(c.Request.Context(), func(tx storage.Storage) error {
		var err error
		balance, err = h.cfg.Ledger.Airdrop(c.Request.Context(), tx, account, request.Amount)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": account.String(), "balance": balance})
}

func (h *Handler) Events(c *gin.Context) {
	limit := 0
	if value := c.Query("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			badRequest(c, fmt.Errorf("limit: %w", err))
			return
		}
		limit = parsed
	}

	events, err := h.cfg.Program.Events(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func bind(c *gin.Context, request any) bool {
	if err := c.ShouldBindJSON(request); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func publicKey(c *gin.Context, field, value string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		badRequest(c, fmt.Errorf("%s: %w", field, err))
		return solana.PublicKey{}, false
	}
	return key, true
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("%s: %w", name, err))
		return 0, false
	}
	return value, true
}

func clientSeed(encoded string) ([32]byte, error) {
	var seed [32]byte
	if encoded == "" {
		_, err := rand.Read(seed[:])
		return seed, err
	}

	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return seed, fmt.Errorf("clientSeed: %w", err)
	}
	if len(raw) != len(seed) {
		return seed, fmt.Errorf("clientSeed has %d bytes, want %d", len(raw), len(seed))
	}
	copy(seed[:], raw)
	return seed, nil
}
