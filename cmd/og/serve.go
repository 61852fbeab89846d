package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/orggraph/internal/catalog"
	"github.com/alfredjeanlab/orggraph/internal/config"
	"github.com/alfredjeanlab/orggraph/internal/draft"
	"github.com/alfredjeanlab/orggraph/internal/events"
	"github.com/alfredjeanlab/orggraph/internal/server"
	"github.com/alfredjeanlab/orggraph/internal/store"
	"github.com/alfredjeanlab/orggraph/internal/store/memory"
	"github.com/alfredjeanlab/orggraph/internal/store/postgres"
	ogsync "github.com/alfredjeanlab/orggraph/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the orggraph HTTP and gRPC server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't set up an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		logger := cfg.NewLogger()

		// Profile store.
		var st store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			st = pg
			logger.Info("profile store: postgres")
		} else {
			st = memory.New()
			logger.Warn("profile store: in-memory (ORGGRAPH_DATABASE_URL not set); profiles are lost on exit")
		}

		// Draft mirror. An empty dir keeps drafts in memory.
		drafts, err := draft.Open(draft.Options{Dir: cfg.DraftDir, TTL: cfg.DraftTTL, Logger: logger})
		if err != nil {
			st.Close()
			return err
		}

		// Collaborator catalog.
		loadCatalog := func() (*catalog.Catalog, error) { return catalog.Load(cfg.CatalogFile) }
		var cat *catalog.Catalog
		if cfg.CatalogFile != "" {
			if cat, err = loadCatalog(); err != nil {
				drafts.Close()
				st.Close()
				return err
			}
			logger.WithFields(logrus.Fields{"file": cfg.CatalogFile, "users": len(cat.Users)}).Info("catalog loaded")
		} else {
			logger.Warn("no catalog (ORGGRAPH_CATALOG_FILE not set); synthesis and triggers need one")
		}

		// Event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				drafts.Close()
				st.Close()
				return err
			}
			publisher = pub
			logger.WithField("nats_url", cfg.NATSURL).Info("events enabled")
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (ORGGRAPH_NATS_URL not set)")
		}

		srv := server.New(server.Options{
			Store:         st,
			Drafts:        drafts,
			Catalog:       cat,
			Publisher:     publisher,
			Logger:        logger,
			AutosaveDelay: cfg.AutosaveDelay,
		})

		// gRPC health endpoint.
		grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken, logger)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			srv.Close()
			publisher.Close()
			drafts.Close()
			st.Close()
			return err
		}
		go func() {
			logger.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil {
				logger.WithError(err).Error("gRPC server error")
			}
		}()

		// HTTP API.
		httpServer := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(server.HTTPOptions{
				AuthToken:   cfg.AuthToken,
				CORSOrigins: cfg.CORSOrigins,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("HTTP server error")
			}
		}()

		// Periodic JSONL export.
		var scheduler *ogsync.Scheduler
		if cfg.Sync.Enabled() {
			dest, err := ogsync.NewS3Destination(ctx, cfg.Sync.S3Bucket, cfg.Sync.S3Key, cfg.Sync.S3Region, cfg.Sync.S3Endpoint)
			if err != nil {
				logger.WithError(err).Error("failed to create S3 sync destination")
			} else {
				scheduler = ogsync.NewScheduler(st, []ogsync.Destination{dest}, cfg.Sync.Interval, logger)
				scheduler.Start()
				logger.WithFields(logrus.Fields{"dest": dest.Name(), "interval": cfg.Sync.Interval}).Info("sync scheduler started")
			}
		}

		// Catalog reloads over NATS.
		var reloadCancel context.CancelFunc
		if cfg.NATSURL != "" && cfg.CatalogFile != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.WithError(err).Error("failed to create catalog reload subscriber")
			} else {
				var reloadCtx context.Context
				reloadCtx, reloadCancel = context.WithCancel(context.Background())
				go func() {
					if err := srv.StartCatalogReloader(reloadCtx, sub, loadCatalog); err != nil {
						logger.WithError(err).Error("catalog reloader error")
					}
					sub.Close()
				}()
			}
		}

		logger.WithFields(logrus.Fields{
			"grpc_addr": cfg.GRPCAddr,
			"http_addr": cfg.HTTPAddr,
		}).Info("orggraph server started")

		// SIGHUP reloads the catalog; SIGINT and SIGTERM shut down.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		var sig os.Signal
		for sig = range sigCh {
			if sig != syscall.SIGHUP {
				break
			}
			if cfg.CatalogFile == "" {
				logger.Warn("SIGHUP ignored: no catalog file configured")
				continue
			}
			if err := srv.ReloadCatalog(loadCatalog); err != nil {
				logger.WithError(err).Warn("catalog reload failed")
			}
		}
		logger.WithField("signal", sig).Info("received signal, shutting down")

		// Graceful shutdown.
		healthServer.Shutdown()
		if reloadCancel != nil {
			reloadCancel()
		}
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("HTTP server shutdown error")
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		// Flushes pending autosaves before the stores go away.
		srv.Close()

		if err := publisher.Close(); err != nil {
			logger.WithError(err).Error("error closing publisher")
		}
		if err := drafts.Close(); err != nil {
			logger.WithError(err).Error("error closing drafts")
		}
		if err := st.Close(); err != nil {
			logger.WithError(err).Error("error closing store")
		}

		logger.Info("shutdown complete")
		return nil
	},
}
