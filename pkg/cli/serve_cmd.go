package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Lorentz83/dbSchema/internal/api"
	"github.com/Lorentz83/dbSchema/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schema state over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.ListenAddr = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return a.serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default LISTEN_ADDR or :8080)")
	return cmd
}

// serve runs the API on ln until ctx is done.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	if !a.cfg.HasCredentials() {
		_ = ln.Close()
		return errors.New("serve: no API credentials configured; set DBSCHEMA_API_KEYS or DBSCHEMA_JWT_SECRET")
	}
	e, store, err := a.loadEngine(ctx)
	if errors.Is(err, errNoState) {
		a.logger.Warn("starting with an empty schema", "state", a.cfg.StatePath)
		e = a.newEngine()
		store, err = openStore(ctx, a.cfg, a.logger)
	}
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer store.Close() //nolint:errcheck

	srv := &http.Server{
		Handler: api.NewServer(e, a.logger,
			api.WithPersister(store),
			api.WithAuth(middleware.NewAuthenticator([]byte(a.cfg.JWTSecret), a.cfg.APIKeys, a.cfg.Admins)),
			api.WithRateLimit(middleware.RateLimitConfig{
				RequestsPerSecond: a.cfg.RateLimitRPS,
				Burst:             a.cfg.RateLimitBurst,
			}),
		).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP API listening", "addr", ln.Addr().String(), "tables", len(e.Tables()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
