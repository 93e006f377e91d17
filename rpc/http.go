package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"revledger/core"
	"revledger/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

type Server struct {
	ledger  *core.Ledger
	logger  *slog.Logger
	auth    *Authenticator
	limiter *PaymentLimiter
	metrics interface {
		Observe(method string, errCode int, duration time.Duration)
	}
}

func NewServer(ledger *core.Ledger, auth *Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:  ledger,
		logger:  logger,
		auth:    auth,
		limiter: NewPaymentLimiter(),
		metrics: observability.RPCMetrics(),
	}
}

func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusRecorder lets the dispatcher observe the error code a handler wrote
// without threading it through every return path.
type statusRecorder struct {
	http.ResponseWriter
	errCode int
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w}
	s.dispatch(recorder, r, req)
	if s.metrics != nil {
		s.metrics.Observe(req.Method, recorder.errCode, time.Since(started))
	}
	s.logger.Debug("rpc request",
		"method", req.Method,
		"requestId", requestID,
		"durationMs", time.Since(started).Milliseconds(),
	)
}

func (s *Server) dispatch(w *statusRecorder, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "reg_propose":
		s.handlePropose(w, r, req)
	case "reg_proposeBatch":
		s.handleProposeBatch(w, r, req)
	case "reg_resolve":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleResolve(w, r, req)
	case "reg_remove":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRemove(w, r, req)
	case "reg_removeBatch":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRemoveBatch(w, r, req)
	case "reg_contribution":
		s.handleContribution(w, r, req)
	case "reg_tagCounts":
		s.handleTagCounts(w, r, req)
	case "reg_ownerTagCounts":
		s.handleOwnerTagCounts(w, r, req)
	case "reg_ownerTagPercentage":
		s.handleOwnerTagPercentage(w, r, req)
	case "verify_setDefaultVerifier":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetDefaultVerifier(w, r, req)
	case "verify_setTagVerifier":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetTagVerifier(w, r, req)
	case "verify_setTagVerifiers":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetTagVerifiers(w, r, req)
	case "dist_setTagWeights":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetTagWeights(w, r, req)
	case "dist_setOwnerPercentage":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetOwnerPercentage(w, r, req)
	case "dist_receivePayment":
		if authErr := s.requireAdmin(r); authErr != nil {
			w.fail(http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleReceivePayment(w, r, req)
	case "dist_claimOwner":
		s.handleClaimOwner(w, r, req)
	case "dist_claimContributor":
		s.handleClaimContributor(w, r, req)
	case "dist_claimAll":
		s.handleClaimAll(w, r, req)
	case "dist_payment":
		s.handlePayment(w, r, req)
	case "dist_weightVersion":
		s.handleWeightVersion(w, r, req)
	case "dist_projectPayout":
		s.handleProjectPayout(w, r, req)
	case "dist_balance":
		s.handleBalance(w, r, req)
	default:
		w.fail(http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func (w *statusRecorder) fail(status int, id interface{}, code int, message string, data interface{}) {
	w.errCode = code
	writeError(w.ResponseWriter, status, id, code, message, data)
}

func (s *Server) requireAdmin(r *http.Request) *RPCError {
	if s.auth == nil {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication not configured"}
	}
	return s.auth.Require(r, "admin")
}
