package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"revledger/config"
	"revledger/core"
	"revledger/crypto"
	"revledger/native/verification"
	"revledger/observability"
	"revledger/observability/logging"
	"revledger/rpc"
	"revledger/storage"
)

const keystorePassEnv = "REVLEDGER_KEYSTORE_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("REVLEDGER_ENV"))
	logger := logging.Setup("revledgerd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	authorizerKey, err := crypto.LoadFromKeystore(cfg.AuthorizerKeystorePath, os.Getenv(keystorePassEnv))
	if err != nil {
		logger.Error("failed to load authorizer key", slog.Any("error", err))
		os.Exit(1)
	}

	poolOwner, err := cfg.PoolOwnerAddress()
	if err != nil {
		logger.Error("failed to decode pool owner", slog.Any("error", err))
		os.Exit(1)
	}
	authorizer, configured, err := cfg.AuthorizerAddress()
	if err != nil {
		logger.Error("failed to decode authorizer", slog.Any("error", err))
		os.Exit(1)
	}
	if !configured {
		copy(authorizer[:], authorizerKey.PubKey().Address().Bytes())
	}
	platformFee, err := cfg.PlatformFee()
	if err != nil {
		logger.Error("failed to parse platform fee", slog.Any("error", err))
		os.Exit(1)
	}
	ledgerCfg := core.Config{
		RegistryID:  cfg.RegistryID,
		PoolOwner:   poolOwner,
		Authorizer:  authorizer,
		PlatformFee: platformFee,
	}
	if strings.TrimSpace(cfg.FeeCollector) != "" {
		collector, err := cfg.FeeCollectorAddress()
		if err != nil {
			logger.Error("failed to decode fee collector", slog.Any("error", err))
			os.Exit(1)
		}
		ledgerCfg.FeeCollector = collector
	}

	ledger := core.NewLedger(db, ledgerCfg)
	ledger.SetEmitter(observability.NewLogEmitter(logger))
	// The built-in verifier accepts everything routed at it; remote
	// verifiers resolve through verify_* and reg_resolve instead.
	ledger.RegisterVerifierHook(authorizer, verification.NewInlineVerifier(nil))

	auth := rpc.NewAuthenticator(rpc.AuthConfig{HMACSecret: config.JWTSecret()})
	server := rpc.NewServer(ledger, auth, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go serveOps(ctx, cfg.OpsAddress, logger)

	logger.Info("revenue ledger daemon starting",
		slog.String("registryId", cfg.RegistryID),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("ops", cfg.OpsAddress),
		slog.String("authorizer", authorizerKey.PubKey().Address().String()),
	)
	if err := server.Start(ctx, cfg.RPCAddress); err != nil {
		logger.Error("rpc server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// serveOps exposes liveness and metrics on a separate listener so operational
// traffic never competes with the RPC surface.
func serveOps(ctx context.Context, addr string, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ops server failed", slog.Any("error", err))
	}
}
