package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MEKXH/wabridge/internal/audit"
	"github.com/MEKXH/wabridge/internal/auth"
	"github.com/MEKXH/wabridge/internal/bridge"
	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/channel"
	"github.com/MEKXH/wabridge/internal/channel/telegram"
	"github.com/MEKXH/wabridge/internal/channel/whatsapp"
	"github.com/MEKXH/wabridge/internal/command"
	"github.com/MEKXH/wabridge/internal/config"
	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/gateway"
	"github.com/MEKXH/wabridge/internal/metrics"
	"github.com/MEKXH/wabridge/internal/pager"
	"github.com/MEKXH/wabridge/internal/state"
)

const (
	contactsDBName = "contacts.db"
	busBufferSize  = 100
)

func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bridge",
		RunE:  runServer,
	}
}

// app holds the wired bridge components.
type app struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	state      *state.Manager
	store      *contacts.SQLiteStore
	directory  *contacts.Directory
	metrics    *metrics.RuntimeMetrics
	telegram   *telegram.Channel
	whatsapp   *whatsapp.Channel
	forwarder  *bridge.Forwarder
	dispatcher *command.Dispatcher
	channels   *channel.Manager
	startedAt  time.Time
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dataDir := cfg.DataDir()
	a := &app{
		cfg:       cfg,
		bus:       bus.NewMessageBus(busBufferSize),
		state:     state.NewManager(dataDir),
		metrics:   metrics.NewRuntimeMetrics(dataDir),
		startedAt: time.Now(),
	}
	if err := a.state.Load(); err != nil {
		return nil, fmt.Errorf("failed to load bridge state: %w", err)
	}

	store, err := contacts.OpenSQLiteStore(filepath.Join(dataDir, contactsDBName))
	if err != nil {
		return nil, err
	}
	a.store = store
	a.directory = contacts.NewDirectory(store)
	if err := a.directory.Load(ctx); err != nil {
		slog.Warn("failed to load contacts, starting empty", "error", err)
	}

	a.telegram = telegram.New(&cfg.Channels.Telegram, a.bus)
	a.whatsapp = whatsapp.New(&cfg.Channels.WhatsApp, a.bus)
	a.forwarder = bridge.NewForwarder(a.bus, a.directory, a.state, a.metrics, cfg.Channels.Telegram.ChatID)

	deps := &command.Deps{
		Out:      a.telegram,
		WhatsApp: a.whatsapp,
		Contacts: a.directory,
		Filters:  a.state,
		Mappings: a.forwarder,
		Sessions: pager.NewSessionStore(),
		Metrics:  a.metrics,
		Audit:    audit.NewWriter(dataDir),
		PageSizes: command.PageSizes{
			Contacts: cfg.Pagination.ContactsPerPage,
			Search:   cfg.Pagination.SearchPerPage,
		},
		StartedAt: a.startedAt,
	}
	authenticator, err := auth.NewAuthenticator(cfg.Auth.Password, cfg.Auth.PasswordHash, a.state)
	switch {
	case err == nil:
		deps.Auth = authenticator
	case errors.Is(err, auth.ErrNoPassword) && !cfg.Channels.Telegram.Enabled:
		// no bot, nothing to protect
	default:
		a.Close()
		return nil, fmt.Errorf("failed to set up authentication: %w", err)
	}

	a.dispatcher = command.NewDispatcher(deps, nil)
	a.telegram.SetHandler(a.dispatcher)

	a.channels = channel.NewManager(a.bus)
	a.channels.SetRuntimeMetrics(a.metrics)
	registerEnabledChannels(cfg, a.channels, a.telegram, a.whatsapp)
	return a, nil
}

func registerEnabledChannels(cfg *config.Config, mgr *channel.Manager, tg, wa channel.Channel) {
	if cfg.Channels.Telegram.Enabled {
		mgr.Register(tg)
	}
	if cfg.Channels.WhatsApp.Enabled {
		mgr.Register(wa)
	}
}

// Status reports the bridge state for the gateway.
func (a *app) Status() gateway.StatusReport {
	connected, user := a.whatsapp.Status()
	return gateway.StatusReport{
		WhatsAppConnected: connected,
		User:              user,
		Chats:             a.forwarder.ChatCount(),
		Users:             a.forwarder.UserCount(),
		Contacts:          a.directory.Len(),
		StartedAt:         a.startedAt,
		Metrics:           a.metrics.Snapshot(),
	}
}

// SendText sends through the WhatsApp channel.
func (a *app) SendText(ctx context.Context, jid, text string) (string, error) {
	return a.whatsapp.SendText(ctx, jid, text)
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("close contacts store failed", "error", err)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Channels.Telegram.Enabled {
		if err := a.telegram.Connect(); err != nil {
			return err
		}
		a.dispatcher.RegisterCommands(ctx)
	} else {
		slog.Warn("telegram channel disabled, bot commands are unavailable")
	}

	errCh := make(chan error, 2)
	go func() {
		if err := a.forwarder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("forwarder failed: %w", err)
		}
	}()

	a.channels.StartAll(ctx)
	go a.channels.RouteOutbound(ctx)

	var gatewayServer *gateway.Server
	if cfg.Gateway.Enabled {
		gatewayServer = gateway.New(cfg.Gateway, a)
		go func() {
			if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("gateway server failed: %w", err)
			}
		}()
		fmt.Printf("wabridge running. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())
	} else {
		fmt.Println("wabridge running. Press Ctrl+C to stop.")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("bridge component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	a.channels.StopAll(shutdownCtx)
	if gatewayServer != nil {
		if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("gateway shutdown failed", "error", err)
		}
	}

	return runErr
}
