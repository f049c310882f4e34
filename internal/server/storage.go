package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/recipe-box/internal/config"
	"github.com/sakif/recipe-box/internal/repository"
	"github.com/sakif/recipe-box/internal/repository/redisstore"
	sqliteRepo "github.com/sakif/recipe-box/internal/repository/sqlite"
	"github.com/sakif/recipe-box/internal/upload"
)

// stores is everything that holds state: the database, the session backend
// and the image store. Both the HTTP server and the sweep command use it.
type stores struct {
	db       *sqliteRepo.DB
	sessions repository.SessionRepository
	redis    *redis.Client
	images   upload.Store
}

// openStores connects every backend the config selects. On error anything
// already opened is closed again.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.DB.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	st := &stores{db: db, sessions: db}

	if cfg.Session.Store == config.StoreRedis {
		st.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := st.redis.Ping(ctx).Err(); err != nil {
			st.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		st.sessions = redisstore.NewSessionRepository(st.redis, "")
	}

	switch cfg.Upload.Backend {
	case config.BackendMinIO:
		st.images, err = upload.NewMinIOStore(ctx, upload.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
	default:
		st.images, err = upload.NewFSStore(cfg.Upload.Dir)
	}
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("opening upload store: %w", err)
	}

	logger.Info("storage ready",
		slog.String("database", cfg.DB.Path),
		slog.String("sessions", cfg.Session.Store),
		slog.String("uploads", cfg.Upload.Backend),
	)
	return st, nil
}

func (st *stores) Close() error {
	var errs []error
	if st.redis != nil {
		errs = append(errs, st.redis.Close())
	}
	if st.db != nil {
		errs = append(errs, st.db.Close())
	}
	return errors.Join(errs...)
}
