package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pamperito/internal/bot"
	"github.com/roach88/pamperito/internal/catalog"
	"github.com/roach88/pamperito/internal/clock"
	"github.com/roach88/pamperito/internal/config"
	"github.com/roach88/pamperito/internal/delivery"
	"github.com/roach88/pamperito/internal/mercadopago"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/payment"
	"github.com/roach88/pamperito/internal/server"
	"github.com/roach88/pamperito/internal/session"
	"github.com/roach88/pamperito/internal/store"
	"github.com/roach88/pamperito/internal/watcher"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long: `Run the WhatsApp and MercadoPago webhook server.

Without a WhatsApp token outbound messages are only logged. Without a
MercadoPago access token payment links fall back to demo mode.

Example:
  pamperito serve --config pamperito.yaml
  PAMPERITO_WHATSAPP_TOKEN=... pamperito serve --db ./orders.db --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

// app is the fully wired process.
type app struct {
	store   *store.Store
	handler http.Handler
	watcher *watcher.Watcher
}

func (a *app) Close() error {
	return a.store.Close()
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	clk := clock.System{}

	st, err := store.Open(cfg.Database.Path, store.WithClock(clk))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	fallback := catalog.Seed()
	if cfg.Business.CatalogFile != "" {
		fallback, err = catalog.LoadFile(cfg.Business.CatalogFile)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to load catalog file", err)
		}
	}
	products := &catalog.Fallback{Primary: st, Secondary: fallback, Logger: logger}

	var msgr messenger.Messenger = messenger.LogOnly{Logger: logger}
	if cfg.WhatsApp.Enabled() {
		msgr = messenger.NewWhatsApp(messenger.Config{
			GraphBase:     cfg.WhatsApp.GraphBase,
			Version:       cfg.WhatsApp.Version,
			PhoneID:       cfg.WhatsApp.PhoneID,
			Token:         cfg.WhatsApp.Token,
			RatePerSecond: cfg.WhatsApp.RatePerSecond,
			Burst:         cfg.WhatsApp.Burst,
		})
	} else {
		logger.Warn("whatsapp token not set, outbound messages are only logged")
	}

	mp := mercadopago.New(mercadopago.Config{
		BaseURL:     cfg.MercadoPago.BaseURL,
		AccessToken: cfg.MercadoPago.AccessToken,
		WebhookURL:  cfg.MercadoPago.WebhookURL,
	})

	var dedup payment.Deduper = payment.NewMemoryDeduper()
	if cfg.MercadoPago.DurableDedup {
		dedup = payment.DeduperFunc(st.MarkPaymentProcessed)
	}
	var fetcher payment.PaymentFetcher
	if mp.Configured() {
		fetcher = mp
	}
	reconciler := payment.NewReconciler(payment.Config{
		Dedup:      dedup,
		Fetcher:    fetcher,
		Orders:     st,
		Messenger:  msgr,
		AdminPhone: cfg.Business.AdminPhone,
		Logger:     logger,
	})

	dispatcher := delivery.NewDispatcher(st, st, msgr, cfg.Business.AdminPhone, logger)
	sessions := session.NewMemoryStore(clk)

	b := bot.New(bot.Config{
		AdminPhone:       cfg.Business.AdminPhone,
		Zone:             cfg.Business.Zone,
		EnableMP:         cfg.Business.EnableMP,
		EnableCash:       cfg.Business.EnableCash,
		TroubleThreshold: cfg.Bot.TroubleThreshold,
	}, bot.Deps{
		Sessions:   sessions,
		Catalog:    products,
		Orders:     st,
		Customers:  st,
		Payments:   mp,
		Dispatcher: dispatcher,
		Messenger:  msgr,
		Logger:     logger,
	})

	w := watcher.New(watcher.Config{
		Sessions:    sessions,
		Customers:   st,
		Messenger:   msgr,
		Clock:       clk,
		Tick:        cfg.Watcher.Tick,
		NudgeAfter:  cfg.Watcher.NudgeAfter,
		ExpireAfter: cfg.Watcher.ExpireAfter,
		Logger:      logger,
	})

	srv := server.New(server.Config{
		VerifyToken: cfg.WhatsApp.VerifyToken,
		Bot:         b,
		Payments:    reconciler,
		Health:      st,
		Logger:      logger,
	})

	return &app{store: st, handler: srv, watcher: w}, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.watcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening",
			"addr", cfg.Server.Addr,
			"db", cfg.Database.Path,
			"whatsapp", cfg.WhatsApp.Enabled(),
			"mercadopago", cfg.MercadoPago.AccessToken != "")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
