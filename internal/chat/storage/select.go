package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/If-Master/ChatControlPlugin/config"
	"github.com/If-Master/ChatControlPlugin/internal/chat"
	"github.com/If-Master/ChatControlPlugin/internal/chat/storage/filestore"
	"github.com/If-Master/ChatControlPlugin/internal/chat/storage/sqlstore"
	"github.com/If-Master/ChatControlPlugin/pkg/errors"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

// Select picks the backend once at startup. A relational backend that
// fails to connect or bootstrap falls back to the file backend for the
// rest of the process lifetime; the choice is never revisited at
// runtime.
func Select(ctx context.Context, cfg *config.Config, log *logger.Logger) (chat.Store, error) {
	switch strings.ToLower(cfg.Storage.Type) {
	case "postgres", "sqlite":
		st, err := openRelational(ctx, cfg, log)
		if err == nil {
			log.Info("using relational storage", "type", cfg.Storage.Type)
			return st, nil
		}
		log.Error("relational storage unavailable, falling back to file storage", "error", err)
		return openFile(cfg, log)
	case "file", "":
		return openFile(cfg, log)
	default:
		return nil, errors.ErrUnknownStorageType
	}
}

func openRelational(ctx context.Context, cfg *config.Config, log *logger.Logger) (*sqlstore.Store, error) {
	var db *bun.DB
	switch strings.ToLower(cfg.Storage.Type) {
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Storage.DSN)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case "sqlite":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Storage.DSN)
		if err != nil {
			return nil, errors.ErrBackendUnavailable(err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	st := sqlstore.New(db, log, cfg.ServerName)
	if err := st.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, errors.ErrBackendUnavailable(err)
	}
	if err := st.Init(ctx); err != nil {
		_ = db.Close()
		return nil, errors.ErrBackendUnavailable(err)
	}
	return st, nil
}

func openFile(cfg *config.Config, log *logger.Logger) (chat.Store, error) {
	st, err := filestore.New(cfg.Storage.DataDir, log)
	if err != nil {
		return nil, err
	}
	log.Info("using file storage", "dir", cfg.Storage.DataDir)
	return st, nil
}
