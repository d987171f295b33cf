// cmd/api/main.go
//
// API entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (server-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load layered config; resolve any `vault:` secrets.
//
//  4. Open MySQL and build the tenant directory, hostname cache,
//     principal store, token service, and authorization engine.
//
//  5. Connect the MQTT bus, the Influx sink, and the audit store; start
//     the wildcard consumer and the retention sweeper.
//
//  6. Mount the chi router, wrap it with the security-header and (when
//     configured) ForceHTTPS middleware, and serve until a signal.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/subvind/API-sub000/internal/audit"
	"github.com/subvind/API-sub000/internal/bus"
	"github.com/subvind/API-sub000/internal/config"
	"github.com/subvind/API-sub000/internal/database"
	"github.com/subvind/API-sub000/internal/event"
	"github.com/subvind/API-sub000/internal/guard"
	"github.com/subvind/API-sub000/internal/logger"
	"github.com/subvind/API-sub000/internal/middleware"
	"github.com/subvind/API-sub000/internal/principal"
	"github.com/subvind/API-sub000/internal/requestinfo"
	"github.com/subvind/API-sub000/internal/server"
	"github.com/subvind/API-sub000/internal/tenant"
	"github.com/subvind/API-sub000/internal/token"
	"github.com/subvind/API-sub000/internal/vault"
)

const serverEnvPath = "/usr/local/etc/subvind/global.env"

// Hostname-cache tunables; sized for the expected tenant count.
const (
	cacheIdleTTL    = 30 * time.Minute
	cacheMaxEntries = 1024
)

// loadEnv prefers the server-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootDir, _ := os.Getwd()
	sugar, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	//
	// ── 1.  Config + secrets ────────────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("load config: %v", err)
	}

	if config.NeedsVault(cfg) {
		vc, err := vault.New(ctx, sugar.Infof)
		if err != nil {
			sugar.Fatalf("vault client: %v", err)
		}
		if err := config.ResolveSecrets(ctx, cfg, vc); err != nil {
			sugar.Fatalf("resolve secrets: %v", err)
		}
	}

	//
	// ── 2.  MySQL connect ───────────────────────────────────────────────
	//
	dsn := cfg.Database.DSN
	if strings.Contains(dsn, "%s") {
		dsn = fmt.Sprintf(dsn, cfg.Database.Password)
	}
	db, err := database.Open(dsn)
	if err != nil {
		sugar.Fatalf("connect DB: %v", err)
	}
	defer db.Close()
	sugar.Infow("database online")

	// Log the tenant count as an early sanity check.
	var tenants int
	_ = db.Get(&tenants, `SELECT COUNT(*) FROM organization`)
	sugar.Infof("%d organization(s) found", tenants)

	//
	// ── 3.  Stores, token service, decision engine ──────────────────────
	//
	dir := tenant.NewSQLDirectory(db)
	cache := tenant.NewCache(dir, cacheIdleTTL, cacheMaxEntries)
	defer cache.Stop()

	principals := principal.NewSQLStore(db)
	tokens := token.NewService(cfg.Token.Secret, time.Duration(cfg.Token.TTLDays)*24*time.Hour)
	engine := guard.New(tokens, principals, dir)

	info, err := requestinfo.New(cfg.GeoIP.Path)
	if err != nil {
		sugar.Fatalf("geoip open: %v", err)
	}
	defer info.Close()

	//
	// ── 4.  Event pipeline: bus → consumer → dual sinks ─────────────────
	//
	mq, err := bus.Connect(bus.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	})
	if err != nil {
		sugar.Fatalf("connect broker: %v", err)
	}
	defer mq.Close()

	sink, err := event.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Username, cfg.Influx.Password, cfg.Influx.Database)
	if err != nil {
		sugar.Fatalf("influx client: %v", err)
	}
	defer sink.Close()

	audits := audit.NewStore(db)
	consumer := event.NewConsumer(mq, sink, audits)
	if err := consumer.Start("organizations", "accounts", "users", "tokens"); err != nil {
		sugar.Fatalf("consumer subscribe: %v", err)
	}

	sweeper := audit.NewSweeper(audits,
		time.Duration(cfg.Retention.SweepSeconds)*time.Second,
		time.Duration(cfg.Retention.MaxAgeHours)*time.Hour)
	go sweeper.Run(ctx)

	//
	// ── 5.  HTTP surface ────────────────────────────────────────────────
	//
	a := &api{
		engine:     engine,
		tokens:     tokens,
		principals: principals,
		orgs:       dir,
		cache:      cache,
		audits:     audits,
		pub:        event.NewPublisher(mq),
		info:       info,
	}

	var handler http.Handler = middleware.Security(a.routes())
	if cfg.HTTP.ForceHTTPS {
		handler = middleware.ForceHTTPS(knownHost(cache), handler)
	}

	srv := server.New(cfg.HTTP.ListenAddr, handler)
	go func() {
		sugar.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		sugar.Errorw("shutdown", "err", err)
	}
}

// knownHost reports whether any tenant surface claims the hostname.
// ForceHTTPS only redirects hosts that resolve, so scanners probing the
// raw address never bounce around.
func knownHost(cache *tenant.Cache) middleware.HostChecker {
	kinds := []tenant.HostnameKind{
		tenant.HostnameWebsite, tenant.HostnameAdmin, tenant.HostnameHome,
		tenant.HostnameStore, tenant.HostnameMedia, tenant.HostnameWorkspace,
	}
	return func(host string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range kinds {
			if _, err := cache.ByHostname(ctx, k, host); err == nil {
				return true
			}
		}
		return false
	}
}
