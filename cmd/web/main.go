// cmd/web/main.go
//
// studyhub – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Bootstrap console logger so config errors are visible.
//
//  2. Connect to Vault when VAULT_ADDR is set; `vault:` references in the
//     config are resolved through it.
//
//  3. Load config (conf/.env → conf/global.yaml → STUDYHUB_* env).
//
//  4. Start the daily rotating logger (tees to console when asked or when
//     running in a TTY).
//
//  5. Register form definitions: embedded defaults, then cfg.Forms.Dir.
//
//  6. Open the local store for notifications and social state.
//
//  7. Build the router and serve until SIGINT or SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yanizio/studyhub/internal/api"
	"github.com/yanizio/studyhub/internal/component"
	"github.com/yanizio/studyhub/internal/config"
	"github.com/yanizio/studyhub/internal/form"
	"github.com/yanizio/studyhub/internal/localstore"
	"github.com/yanizio/studyhub/internal/logger"
	"github.com/yanizio/studyhub/internal/server"
	"github.com/yanizio/studyhub/internal/session"
	"github.com/yanizio/studyhub/internal/vault"
	"github.com/yanizio/studyhub/internal/view"
	"github.com/yanizio/studyhub/internal/web"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	boot, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(boot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		zap.S().Errorw("studyhub stopped", "err", err)
		_ = zap.S().Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	//
	// Secrets and config.
	//
	var src config.SecretSource
	if vault.Enabled() {
		vc, err := vault.New(ctx, zap.S())
		if err != nil {
			return err
		}
		src = vc
	}
	cfg, err := config.Load(ctx, src)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Dir, cfg.Log.Level, cfg.Log.Tee || runningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	//
	// Forms.
	//
	if err := form.LoadDefaults(); err != nil {
		return err
	}
	if cfg.Forms.Dir != "" {
		if err := form.RegisterForms([]string{cfg.Forms.Dir}); err != nil {
			return err
		}
	}
	csrfKey := cfg.Session.CSRFSecret
	if csrfKey == "" {
		csrfKey = cfg.Session.Secret
	}
	form.SetCSRFSecret([]byte(csrfKey))

	//
	// Backend, local store, and sessions.
	//
	backend, err := api.New(cfg.API.BaseURL, cfg.API.Timeout, log)
	if err != nil {
		return err
	}

	store, err := localstore.Open(localstore.Options{
		Driver:   cfg.Store.Driver,
		Path:     cfg.Store.Path,
		DSN:      cfg.Store.DSN,
		Capacity: cfg.Store.Capacity,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	notes := localstore.NewNotifications(store)

	sessions, err := session.New(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return err
	}

	//
	// Router and server.
	//
	handler, err := web.NewRouter(component.Deps{
		Backend:       backend,
		Notifications: notes,
		Social:        localstore.NewSocial(store, notes),
		Sessions:      sessions,
		Views:         view.New(""),
		Logger:        log,
		RefDate:       cfg.RefDate(),
		Timeout:       cfg.API.Timeout,
	}, web.Options{
		ForceHTTPS: cfg.HTTP.ForceHTTPS,
		ImgOrigins: []string{cfg.API.BaseURL},
	})
	if err != nil {
		return err
	}

	log.Infow("studyhub listening", "addr", cfg.HTTP.ListenAddr, "api", cfg.API.BaseURL, "store", cfg.Store.Driver)
	return server.Run(ctx, server.New(cfg.HTTP.ListenAddr, handler), log)
}
