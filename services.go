package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/shiftops/internal/config"
	"github.com/sadopc/shiftops/internal/logging"
	"github.com/sadopc/shiftops/internal/photos"
	"github.com/sadopc/shiftops/internal/qr"
	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
	"github.com/sadopc/shiftops/internal/verify"
)

// services is the wired set of services every subcommand shares.
type services struct {
	log    *zap.Logger
	loc    *time.Location
	store  *store.Store
	gate   *roster.Gate
	photos *photos.FS
	tasks  *tasks.Service

	closers []func() error
}

func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return store.DefaultDBPath()
}

func open(ctx context.Context, cfg config.Config, service string) (*services, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile, service)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt := &services{log: log}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	rt.loc, err = cfg.Location()
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	rt.store, err = store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.closers = append(rt.closers, rt.store.Close)

	photoDir := cfg.PhotoDir
	if photoDir == "" {
		if photoDir, err = photos.DefaultDir(); err != nil {
			return nil, err
		}
	}
	rt.photos, err = photos.NewFS(photoDir, cfg.PublicURL, 1600)
	if err != nil {
		return nil, err
	}
	rt.photos.UseSettings(rt.store)

	var verified tasks.VerificationStore
	if cfg.RedisAddr != "" {
		client, err := verify.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		verified = verify.NewRedisStore(client, cfg.VerifyTTL)
		log.Info("verification sessions in redis", zap.String("addr", cfg.RedisAddr))
	} else {
		verified = verify.NewMemoryStore(cfg.VerifyTTL)
	}

	rt.gate = roster.NewGate(rt.store, rt.loc, log.Named("roster"))
	rt.tasks = tasks.New(tasks.Options{
		Store:    rt.store,
		Roster:   rt.gate,
		Shifts:   rt.gate,
		Verified: verified,
		Photos:   rt.photos,
		QR:       qr.NewDecoder(),
		Location: rt.loc,
		Logger:   log.Named("tasks"),
	})

	log.Debug("services ready", zap.String("db", dbPath), zap.String("photos", photoDir), zap.String("tz", rt.loc.String()))
	ok = true
	return rt, nil
}

// Close releases everything open opened, newest first.
func (rt *services) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.Warn("close failed", zap.Error(err))
		}
	}
	rt.closers = nil
	_ = rt.log.Sync()
}
