package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"raffle/internal/logger"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Timestamp"

	DefaultSignatureWindow = 5 * time.Minute
)

var (
	ErrMissingSignature = errors.New("missing request signature")
	ErrInvalidSignature = errors.New("request signature does not match the signer")
	ErrExpiredSignature = errors.New("request timestamp outside the accepted window")
	ErrReplayedRequest  = errors.New("request signature already used")
)

// SigningMessage is what a caller signs: method, path and unix timestamp on
// their own lines, followed by the raw JSON body.
func SigningMessage(method, path string, timestamp int64, body []byte) []byte {
	message := fmt.Appendf(nil, "%s %s\n%d\n", method, path, timestamp)
	return append(message, body...)
}

// SignRequest signs a request body with key. The result goes base58 encoded
// into the X-Signature header and timestamp into X-Timestamp.
func SignRequest(key solana.PrivateKey, method, path string, timestamp int64, body []byte) (solana.Signature, error) {
	return key.Sign(SigningMessage(method, path, timestamp, body))
}

// signedRequest names the identity that must have signed the request.
type signedRequest interface {
	signer() (field, value string)
}

// bindSigned decodes the JSON body into request and checks that the identity
// it names signed this exact request. It writes the error response itself.
func (h *Handler) bindSigned(c *gin.Context, request signedRequest) (solana.PublicKey, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return solana.PublicKey{}, false
	}
	if err := binding.JSON.BindBody(body, request); err != nil {
		badRequest(c, err)
		return solana.PublicKey{}, false
	}

	field, value := request.signer()
	signer, ok := publicKey(c, field, value)
	if !ok {
		return solana.PublicKey{}, false
	}

	if err := h.verify(c, signer, body); err != nil {
		rejectSignature(c, signer, err)
		return solana.PublicKey{}, false
	}
	return signer, true
}

func (h *Handler) verify(c *gin.Context, signer solana.PublicKey, body []byte) error {
	encoded := c.GetHeader(SignatureHeader)
	if encoded == "" {
		return ErrMissingSignature
	}
	signature, err := solana.SignatureFromBase58(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	timestamp, err := strconv.ParseInt(c.GetHeader(TimestampHeader), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExpiredSignature, err)
	}
	now := h.cfg.Clock.Now()
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > h.cfg.SignatureWindow {
		return ErrExpiredSignature
	}

	path := c.Request.URL.Path
	if !signature.Verify(signer, SigningMessage(c.Request.Method, path, timestamp, body)) {
		return ErrInvalidSignature
	}

	// A signature stays acceptable for one window on either side of its
	// timestamp, so records are kept for two.
	err = h.cfg.Storage.ConsumeSignature(c.Request.Context(), &storage.ConsumedSignature{
		Signature:  signature.String(),
		Signer:     signer.String(),
		Route:      path,
		ConsumedAt: now.Unix(),
	}, now.Add(-2*h.cfg.SignatureWindow))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return ErrReplayedRequest
	}
	return err
}

func rejectSignature(c *gin.Context, signer solana.PublicKey, err error) {
	switch {
	case errors.Is(err, ErrReplayedRequest):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "ReplayedRequest"})
	case errors.Is(err, ErrMissingSignature), errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrExpiredSignature):
		logger.Debug("api: signature rejected", zap.String("signer", signer.String()), zap.Error(err))
		c.JSON(http.StatusForbidden, errorResponse{Error: err.Error(), Code: "InvalidSignature"})
	default:
		respondError(c, err)
	}
}
