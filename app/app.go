// Package app assembles both record apps from a Config. The HTTP server and
// the command line tool share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"zen-records/agenda"
	"zen-records/clinic"
	"zen-records/config"
	"zen-records/domain"
	"zen-records/notice"
	"zen-records/storage"
)

type Runtime struct {
	Agenda        *agenda.App
	AgendaNotices *notice.Board
	Clinic        *clinic.Service
	ClinicNotices *notice.Board

	db     *storage.ClinicDB
	redis  *redis.Client
	logger *log.Logger
}

// AgendaKV opens the key/value backend selected by cfg, wrapped in the redis
// read-through cache when one is configured. The returned client is nil when
// redis is unused.
func AgendaKV(ctx context.Context, cfg config.Config, logger *log.Logger) (storage.KV, *redis.Client, error) {
	var rc *redis.Client
	if cfg.RedisConnectionString != "" && (cfg.AgendaBackend == config.BackendRedis || cfg.UseCache()) {
		rc = redis.NewClient(storage.ParseRedisOptions(cfg.RedisConnectionString))
	}

	var kv storage.KV
	switch cfg.AgendaBackend {
	case config.BackendMemory:
		kv = storage.NewMemoryStore(cfg.AgendaQuota)
	case config.BackendFile:
		fs, err := storage.NewFileStore(storage.FileConfig{Dir: cfg.DataDir, MaxBytes: int64(cfg.AgendaQuota), Logger: logger})
		if err != nil {
			return nil, rc, fmt.Errorf("file store: %w", err)
		}
		kv = fs
	case config.BackendRedis:
		kv = storage.NewRedisStore(rc, "zen:", cfg.AgendaQuota)
	case config.BackendTable:
		ts, err := storage.NewTableStore(cfg.StorageConnectionString, cfg.AgendaTable, cfg.AgendaKey)
		if err != nil {
			return nil, rc, fmt.Errorf("table store: %w", err)
		}
		if err := ts.EnsureTable(ctx); err != nil {
			return nil, rc, fmt.Errorf("table store: %w", err)
		}
		kv = ts
	default:
		return nil, rc, fmt.Errorf("unknown agenda backend %q", cfg.AgendaBackend)
	}

	if cfg.UseCache() {
		kv = storage.NewCache(kv, rc, cfg.CacheTTL)
	}
	logger.WithFields(log.Fields{
		"backend": cfg.AgendaBackend,
		"cached":  cfg.UseCache(),
		"quota":   cfg.AgendaQuota,
	}).Info("agenda storage ready")
	return kv, rc, nil
}

// Open builds and loads both apps.
func Open(ctx context.Context, cfg config.Config, logger *log.Logger) (*Runtime, error) {
	if logger == nil {
		logger = log.New()
	}
	kv, rc, err := AgendaKV(ctx, cfg, logger)
	if err != nil {
		if rc != nil {
			_ = rc.Close()
		}
		return nil, err
	}

	db, err := storage.OpenClinicDB(cfg.ClinicDB)
	if err != nil {
		if rc != nil {
			_ = rc.Close()
		}
		return nil, fmt.Errorf("clinic db: %w", err)
	}

	rt := &Runtime{
		AgendaNotices: notice.NewBoard(logger, "agenda"),
		ClinicNotices: notice.NewBoard(logger, "clinic"),
		db:            db,
		redis:         rc,
		logger:        logger,
	}
	rt.Agenda = agenda.New(storage.NewSnapshotStore[domain.AgendaSnapshot](kv, cfg.AgendaKey), rt.AgendaNotices, logger)
	rt.Clinic = clinic.New(db, rt.ClinicNotices, logger)

	rt.Agenda.Open(ctx)
	if err := rt.Clinic.Open(ctx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("clinic: %w", err)
	}
	return rt, nil
}

// Close releases the database and the redis client.
func (r *Runtime) Close() error {
	var errs []error
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	return errors.Join(errs...)
}
