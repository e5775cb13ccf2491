package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chatbuddy/chatbot-backend/internal/config"
	storepkg "github.com/chatbuddy/chatbot-backend/internal/store"
	storepg "github.com/chatbuddy/chatbot-backend/internal/store/postgres"
	storelite "github.com/chatbuddy/chatbot-backend/internal/store/sqlite"
)

// NewStore returns a store.Store for the configured driver.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("CHATBOT_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := storepg.EnsureSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		log.Debug().Str("driver", cfg.DBDriver).Msg("store ready")
		return storepg.NewWithDB(db), nil

	case "sqlite":
		st, err := storelite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("store ready")
		return st, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
