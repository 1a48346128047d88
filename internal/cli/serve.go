package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	httpDelivery "github.com/strdr1/telegram-bot-api-sub001/internal/delivery/http"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled menu refresh",
		RunE:  runServe,
	}
	cmd.Flags().StringP("port", "p", "", "Listen port (overrides server.port)")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Printf("Starting menubot v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Catalog: %s (point %d)", cfg.Source.BaseURL, cfg.Source.PointID)
	if cfg.Source.APIKey == "" {
		log.Printf("WARNING: catalog API key not configured")
	}

	a := newApp(cfg, nil)
	defer a.close()

	if n := a.cache.Restore(); n > 0 {
		log.Printf("Restored %d snapshots from %s", n, cfg.Cache.Dir)
	}

	router := httpDelivery.SetupRouter(cfg, httpDelivery.NewHandler(a.service), a.collector.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.scheduler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Printf("Server stopped")
	return err
}
