package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ferro-labs/llm-router/authz"
	"github.com/ferro-labs/llm-router/breaker"
	"github.com/ferro-labs/llm-router/health"
	"github.com/ferro-labs/llm-router/internal/admin"
	"github.com/ferro-labs/llm-router/internal/logging"
	"github.com/ferro-labs/llm-router/internal/version"
	"github.com/ferro-labs/llm-router/ledger"
	"github.com/ferro-labs/llm-router/providers"
	"github.com/ferro-labs/llm-router/router"
	"github.com/ferro-labs/llm-router/snapshot"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	region := envOr("SERVICE_REGION", "us-east-1")
	configID := envOr("ACTIVE_CONFIG_ID", "default")

	snapshots := openSnapshotStore()
	healthStore := openHealthStore(region)
	ledgerStore := openLedgerStore()
	directory := openDirectory()
	verifier := openVerifier()

	breakers := breaker.NewManager(healthStore)
	adapters := registerAdapters()
	if len(adapters) == 0 {
		log.Fatal("no provider adapters configured; set at least one <PROVIDER>_API_KEY_SECRET_ID or its backing env var")
	}

	rt := router.New(snapshots, adapters, breakers, ledgerStore, directory, configID)
	authorizer := authz.New(verifier, directory)

	keyStore := admin.NewKeyStore()

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}

	handler := newRouter(rt, authorizer, keyStore, snapshots, healthStore, breakers, ledgerStore, configID, region, corsOrigins)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("llm-router %s listening on %s (%d adapter(s), region=%s)", version.Short(), addr, len(adapters), region)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

// newRouter builds the HTTP router: the public /v1/chat surface, the
// bearer-API-key protected /admin tree, and ambient /health and /metrics.
func newRouter(rt *router.Router, authorizer *authz.Authorizer, keyStore admin.Store, snapshots snapshot.Store, healthStore health.Store, breakers *breaker.Manager, ledgerStore ledger.Store, configID, region string, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(corsMiddleware(corsOrigins...))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	adminHandlers := &admin.Handlers{
		Keys:     keyStore,
		ConfigID: configID,
		Snapshots: snapshotAdminView{store: snapshots},
		Health:   healthAdminView{store: healthStore, snapshots: snapshots, configID: configID, region: region},
		Breakers: breakerAdminView{manager: breakers, snapshots: snapshots, configID: configID, region: region},
		Ledger:   ledgerAdminView{store: ledgerStore},
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.AuthMiddleware(keyStore))
		r.Mount("/", adminHandlers.Routes())
	})

	r.Post("/v1/chat", chatHandler(rt, authorizer, region))

	return r
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// registerAdapters builds one providers.Adapter per upstream whose secret
// env var is set, sourcing each adapter's ProviderCfg from the bootstrap
// snapshot document's defaults when GATEWAY_SNAPSHOT_FILE names one, or a
// bare-minimum config otherwise — actual rate limits/model tables are
// re-read per request from the Config Snapshot by the Router itself; what
// an Adapter carries is only the static rate-limit shape it needs to build
// its local token bucket.
func registerAdapters() map[string]providers.Adapter {
	adapters := make(map[string]providers.Adapter)
	secrets := providers.EnvSecretStore{}

	cfgFor := func(secretEnv string, rpm, tpm int) snapshot.ProviderCfg {
		return snapshot.ProviderCfg{
			Active:     true,
			SecretID:   secretEnv,
			RateLimits: snapshot.RateLimits{RPM: rpm, TPM: tpm},
		}
	}

	if os.Getenv("OPENAI_API_KEY_SECRET_ID") != "" || os.Getenv("OPENAI_API_KEY") != "" {
		secretID := envOr("OPENAI_API_KEY_SECRET_ID", "OPENAI_API_KEY")
		adapters["openai"] = providers.NewOpenAIAdapter(cfgFor(secretID, 500, 200000), secrets, os.Getenv("OPENAI_BASE_URL"))
		log.Println("adapter registered: openai")
	}
	if os.Getenv("ANTHROPIC_API_KEY_SECRET_ID") != "" || os.Getenv("ANTHROPIC_API_KEY") != "" {
		secretID := envOr("ANTHROPIC_API_KEY_SECRET_ID", "ANTHROPIC_API_KEY")
		adapters["anthropic"] = providers.NewAnthropicAdapter(cfgFor(secretID, 500, 200000), secrets, os.Getenv("ANTHROPIC_BASE_URL"))
		log.Println("adapter registered: anthropic")
	}
	if os.Getenv("BEDROCK_ENABLED") == "true" {
		adapter, err := providers.NewBedrockAdapter(cfgFor("", 500, 200000), os.Getenv("SERVICE_REGION"))
		if err != nil {
			log.Printf("bedrock adapter: %v (skipping)", err)
		} else {
			adapters["bedrock"] = adapter
			log.Println("adapter registered: bedrock")
		}
	}
	return adapters
}

func openSnapshotStore() snapshot.Store {
	if dsn := os.Getenv("PROVIDER_CONFIG_TABLE_NAME"); dsn != "" {
		if strings.HasPrefix(dsn, "postgres://") {
			store, err := snapshot.NewPostgresStore(dsn)
			if err != nil {
				log.Fatalf("snapshot store: %v", err)
			}
			return store
		}
		store, err := snapshot.NewSQLiteStore(dsn)
		if err != nil {
			log.Fatalf("snapshot store: %v", err)
		}
		return store
	}
	if path := os.Getenv("GATEWAY_SNAPSHOT_FILE"); path != "" {
		store, err := snapshot.NewFileStore(path)
		if err != nil {
			log.Fatalf("snapshot bootstrap file: %v", err)
		}
		return store
	}
	store, err := snapshot.NewSQLiteStore("")
	if err != nil {
		log.Fatalf("snapshot store: %v", err)
	}
	return store
}

func openHealthStore(region string) health.Store {
	if table := os.Getenv("PROVIDER_HEALTH_TABLE_NAME"); table != "" {
		store, err := health.NewDynamoStore(context.Background(), table, region)
		if err != nil {
			log.Fatalf("health store: %v", err)
		}
		return store
	}
	return health.NewMemoryStore()
}

func openLedgerStore() ledger.Store {
	dsn := os.Getenv("TOKEN_LEDGER_TABLE_NAME")
	if strings.HasPrefix(dsn, "postgres://") {
		store, err := ledger.NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("ledger store: %v", err)
		}
		return store
	}
	store, err := ledger.NewSQLiteStore(dsn)
	if err != nil {
		log.Fatalf("ledger store: %v", err)
	}
	return store
}

// openDirectory opens the authz.SQLDirectory that serves as both
// authz.Directory (Family/Profile lookups) and router.Debiter (token balance
// spend), since SQLDirectory implements both against the same
// Families/Profiles tables.
func openDirectory() *authz.SQLDirectory {
	familiesDSN := os.Getenv("FAMILIES_TABLE_NAME")
	profilesDSN := os.Getenv("PROFILES_TABLE_NAME")
	dsn := familiesDSN
	if dsn == "" {
		dsn = profilesDSN
	}
	if strings.HasPrefix(dsn, "postgres://") {
		store, err := authz.NewPostgresDirectory(dsn)
		if err != nil {
			log.Fatalf("directory: %v", err)
		}
		return store
	}
	store, err := authz.NewSQLiteDirectory(dsn)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	return store
}

func openVerifier() authz.IdentityVerifier {
	if secret := os.Getenv("JWT_HMAC_SECRET"); secret != "" {
		return authz.NewHMACVerifier([]byte(secret), envOr("JWT_ISSUER", "llm-router"))
	}
	if tokenURL := os.Getenv("OAUTH_TOKEN_URL"); tokenURL != "" {
		return authz.NewServiceVerifier(
			os.Getenv("OAUTH_CLIENT_ID"),
			os.Getenv("OAUTH_CLIENT_SECRET"),
			tokenURL,
			os.Getenv("OAUTH_INTROSPECT_URL"),
		)
	}
	log.Fatal("no identity verifier configured: set JWT_HMAC_SECRET or OAUTH_TOKEN_URL")
	return nil
}
