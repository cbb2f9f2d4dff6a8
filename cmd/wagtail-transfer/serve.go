package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/torchbox-forks/wagtail-transfer/pkg/api"
	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
	mw "github.com/torchbox-forks/wagtail-transfer/pkg/httputil/middleware"
	"github.com/torchbox-forks/wagtail-transfer/pkg/menu"
	"github.com/torchbox-forks/wagtail-transfer/pkg/metrics"
	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
	"github.com/torchbox-forks/wagtail-transfer/pkg/permission"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the content API server",
	Long:  `Starts the HTTP server exposing the page tree and snippet models through the admin and public content APIs`,
	Run:   runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("server.listenAddr", "l", "", "server listen address")
	f.String("server.baseURL", "", "base URL for API endpoints")
	f.StringP("database.connString", "c", "", "PostgreSQL connection string")
	f.String("auth.oidc.clientID", "", "OIDC client ID")
	f.String("auth.oidc.clientSecret", "", "OIDC client secret")
	f.String("auth.oidc.issuer", "", "OIDC issuer URL")

	viper.BindPFlags(f)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}

	connString := cfg.Database.ConnString
	if connString == "" {
		connString = os.Getenv("WT_DATABASE_CONN_STRING")
		if connString == "" {
			log.Fatal("PostgreSQL connection string required")
		}
	}

	// flag overrides
	if listenAddr := viper.GetString("server.listenAddr"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	logger := newLogger(logLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := model.Connect(ctx, connString, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	registry := model.NewRegistry()
	registry.Register(model.PageModel(), false)
	if err := registry.RegisterPageTypes(cfg.PageTypes); err != nil {
		logger.Fatal("invalid page type config", zap.Error(err))
	}
	if err := registry.RegisterSnippets(cfg.Snippets); err != nil {
		logger.Fatal("invalid snippet config", zap.Error(err))
	}

	store := model.NewStore(db, logger)
	policy := permission.NewPolicy(cfg, store)

	hooks := menu.NewHooks()
	hooks.Register(menu.RegisterMenuItemHook, func() *menu.MenuItem {
		return menu.TransferMenuItem(cfg)
	})

	var routerOpts []httputil.RouterOptions
	if cfg.Server.TLSCert != "" || cfg.Server.TLSKey != "" {
		routerOpts = append(routerOpts, httputil.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
	}
	hr := httputil.NewRouter(routerOpts...)

	// Root router stays bare: ListenAndServe applies root middleware on top
	// of what Handle already wrapped, so shared middleware lives on a group.
	app := hr.Group("")
	app.Use(mw.RequestID, mw.CORSWithOptions(nil), mw.Metrics)

	if cfg.Auth.OIDC.Enabled() {
		app.Use(mw.VerifyOIDCToken(mw.OIDCProviderConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			Issuer:       cfg.Auth.OIDC.Issuer,
		}, false))
	}
	if cfg.Auth.BasicAuthEnabled {
		if creds := cfg.BasicAuthCredentials(); len(creds) > 0 {
			app.Use(mw.VerifyBasicAuth(mw.BasicAuthCreds(creds), false))
		}
	}
	// add logger middleware after the auth middleware so the request log
	// carries the authenticated user
	if logLevel != "none" {
		app.Use(mw.LoggerWithOptions(nil))
	}

	app.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	deps := api.PagesEndpointDeps{
		Registry: registry,
		Store:    store,
		Policy:   policy,
		Config:   cfg,
		Logger:   logger,
	}

	public := api.NewRouter(cfg.Server.BaseURL + "/v2")
	public.Register(api.NewPagesEndpoint(deps))
	public.Mount(app)

	adminGroup := app.Group("")
	adminGroup.Use(policy.Middleware)

	adminBase := cfg.Server.BaseURL + "/admin"
	admin := api.NewRouter(adminBase)
	admin.Register(api.NewAdminPagesEndpoint(deps))
	admin.Mount(adminGroup)

	models := &api.ModelsEndpoint{
		Registry: registry,
		Store:    store,
		Logger:   logger,
		Pagination: api.Pagination{
			DefaultLimit: cfg.Pagination.DefaultLimit,
			MaxLimit:     cfg.Pagination.MaxLimit,
		},
	}
	models.Mount(adminGroup, adminBase+"/models")

	adminGroup.Handle("GET "+adminBase+"/menu/{$}", menu.Handler(hooks))

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.ListenAddr})
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := hr.ListenAndServe(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := hr.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	cancel()
	wg.Wait()
	logger.Info("server gracefully stopped")
}

func newLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}
