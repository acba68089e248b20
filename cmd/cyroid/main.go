package main

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cyroid/cyroid/pkg/authz"
	"github.com/cyroid/cyroid/pkg/config"
	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/ingress"
	"github.com/cyroid/cyroid/pkg/log"
	"github.com/cyroid/cyroid/pkg/metrics"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/security"
	"github.com/cyroid/cyroid/pkg/session"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "cyroid",
	Short:   "cyroid runs a single-node cyber range orchestrator",
	Version: Version,
	RunE:    runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cyroid version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))
	config.BindFlags(rootCmd.Flags(), &flagCfg)
}

// flagCfg holds the flag-bound defaults; cobra parses directly into it
// before RunE runs, so runServe only needs to overlay the environment.
var flagCfg = config.Default()

func runServe(cmd *cobra.Command, args []string) error {
	cfg := flagCfg
	if err := config.OverlayEnv(&cfg); err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (set --jwt-secret or CYROID_JWT_SECRET)")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		Output:     os.Stdout,
	})
	log.Info("starting cyroid")

	repo, err := repository.NewBoltRepository(filepath.Dir(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	installKey := sha256.Sum256([]byte(cfg.JWTSecret))
	if err := security.SetInstallationEncryptionKey(installKey[:]); err != nil {
		return fmt.Errorf("set installation encryption key: %w", err)
	}

	ca := security.NewCertAuthority(repo)
	if err := ca.LoadFromStore(); err != nil {
		log.Info("no stored CA found, bootstrapping a new one")
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("initialize CA: %w", err)
		}
		if err := ca.SaveToStore(); err != nil {
			return fmt.Errorf("persist CA: %w", err)
		}
	}
	cert, err := ca.IssueSessionCertificate("cyroid-session-endpoint", []string{"localhost"}, nil)
	if err != nil {
		return fmt.Errorf("issue session certificate: %w", err)
	}

	rt, err := runtime.NewContainerdRuntime(cfg.ContainerdSocket, cfg.CNIConfDir)
	if err != nil {
		return fmt.Errorf("connect to containerd: %w", err)
	}
	defer rt.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	journal := events.NewJournal(repo, broker)

	admin, err := bootstrapAdmin(repo, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap admin principal: %w", err)
	}

	sessionSrv := session.New(repo, rt, journal, cfg.JWTSecret)
	mw := ingress.NewMiddleware()
	mw.StartCleanupJob()
	handler := mw.Wrap(sessionSrv.Handler(), &ingress.RateLimit{RequestsPerSecond: 20, Burst: 40}, nil)

	metrics.SetVersion(Version)
	metrics.RegisterComponent("repository", true, "ready")
	metrics.RegisterComponent("containerd", true, "ready")
	metrics.RegisterComponent("session", true, "ready")

	collector := metrics.NewCollector(repo)
	collector.Start()
	defer collector.Stop()

	adminHTTP := http.NewServeMux()
	adminHTTP.Handle("/metrics", metrics.Handler())
	adminHTTP.Handle("/health", metrics.HealthHandler())
	adminHTTP.Handle("/ready", metrics.ReadyHandler())
	adminHTTP.Handle("/live", metrics.LivenessHandler())
	adminSrv := &http.Server{Addr: "127.0.0.1:9090", Handler: adminHTTP}

	sessionSrvHTTP := &http.Server{
		Addr:      cfg.ListenAddr,
		Handler:   handler,
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{*cert}},
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info(fmt.Sprintf("admin endpoints listening on http://%s", adminSrv.Addr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()
	go func() {
		log.Info(fmt.Sprintf("session multiplexer listening on https://%s", cfg.ListenAddr))
		if err := sessionSrvHTTP.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("session server: %w", err)
		}
	}()

	printBootstrapToken(admin, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		log.Error(err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessionSrvHTTP.Shutdown(shutdownCtx)
	adminSrv.Shutdown(shutdownCtx)

	log.Info("shutdown complete")
	return nil
}

// bootstrapAdmin ensures a single admin principal exists so the operator
// has a token-bearing identity to reach the session endpoints with on a
// freshly initialized installation; later admin management belongs to
// whatever surface drives pkg/authz's principal CRUD.
func bootstrapAdmin(repo repository.Repository, cfg config.Config) (*types.Principal, error) {
	const adminID = "admin"
	p, err := repo.GetPrincipal(adminID)
	if err == nil {
		return p, nil
	}
	var cerr *cyerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cyerr.KindNotFound {
		return nil, err
	}

	p = &types.Principal{
		ID:       adminID,
		Roles:    []string{"admin"},
		Approved: true,
		Active:   true,
	}
	if err := repo.CreatePrincipal(p); err != nil {
		return nil, err
	}
	return p, nil
}

func printBootstrapToken(p *types.Principal, cfg config.Config) {
	tok, err := authz.IssueToken(cfg.JWTSecret, cfg.JWTTTL, p)
	if err != nil {
		log.Error(fmt.Sprintf("issue bootstrap token: %v", err))
		return
	}
	log.Info(fmt.Sprintf("admin bearer token (valid %s): %s", cfg.JWTTTL, tok))
}
