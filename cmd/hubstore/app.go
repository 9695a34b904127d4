package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/auth"
	"github.com/sagarc03/hubstore/config"
	"github.com/sagarc03/hubstore/database"
	"github.com/sagarc03/hubstore/driver"
	"github.com/sagarc03/hubstore/proofs"
)

// app is a fully wired hub with the resources it holds open.
type app struct {
	hub     *hubstore.HubServer
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	drv, err := driver.Open(ctx, cfg.Driver)
	if err != nil {
		return nil, err
	}
	if c, ok := drv.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	logger.Info("storage driver ready", "type", cfg.Driver.Type, "read_url_prefix", drv.ReadURLPrefix())

	validSince, err := cfg.Auth.ValidSinceTime()
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(auth.Config{
		ChallengeText: auth.ChallengeText(cfg.Server.Name),
		ValidSince:    validSince,
		ClockSkew:     cfg.Auth.ClockSkew,
		DisableV1:     cfg.Auth.DisableV1,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	whitelist, err := auth.LoadWhitelist(cfg.Auth.Whitelist)
	if err != nil {
		return nil, err
	}
	if len(whitelist) > 0 {
		logger.Info("write whitelist loaded", "addresses", len(whitelist))
	}

	source, err := a.openProofSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	checker, err := proofs.NewChecker(cfg.Proofs.Policy, source)
	if err != nil {
		return nil, err
	}

	a.hub, err = hubstore.NewHubServer(drv, verifier, checker, hubstore.HubConfig{Whitelist: whitelist})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// openProofSource returns nil when proofs are disabled.
func (a *app) openProofSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (proofs.Source, error) {
	if !cfg.Proofs.Enabled {
		return nil, nil
	}

	var source proofs.Source
	switch cfg.Proofs.Source {
	case "grpc":
		conn, err := dialProofService(cfg.Proofs.GRPC)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)

		grpcSource := proofs.NewGRPCSource(conn)
		if cfg.Proofs.GRPC.Timeout > 0 {
			grpcSource.Timeout = cfg.Proofs.GRPC.Timeout
		}
		source = grpcSource
		logger.Info("using remote proof service", "addr", cfg.Proofs.GRPC.Addr)
	default:
		db, err := database.Open(ctx, cfg.Database, cfg.Database.AutoMigrate)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		source = db.GetRepo()
		logger.Info("using proof database", "type", cfg.Database.Type, "table", cfg.Database.Tables.Proofs)
	}

	if cfg.Proofs.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Proofs.Cache.Addr,
			Password: cfg.Proofs.Cache.Password,
			DB:       cfg.Proofs.Cache.DB,
		})
		a.closers = append(a.closers, rdb.Close)

		source = proofs.NewCachedSource(rdb, source, proofs.CacheConfig{
			TTL:       cfg.Proofs.Cache.TTL,
			KeyPrefix: cfg.Proofs.Cache.KeyPrefix,
			Logger:    logger,
		})
		logger.Info("proof cache enabled", "addr", cfg.Proofs.Cache.Addr, "ttl", cfg.Proofs.Cache.TTL)
	}

	return source, nil
}

func dialProofService(cfg config.GRPCSourceConfig) (*grpc.ClientConn, error) {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial proof service %s: %w", cfg.Addr, err)
	}
	return conn, nil
}
