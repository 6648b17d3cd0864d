// Package store persists content records, their metadata side table and the
// authors records can be attributed to.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/vasilisp/autopost/internal/config"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/util"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db      *gorm.DB
	siteURL string
	log     *logger.Logger
}

// Open connects to the configured database.
func Open(cfg config.DB) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// New wraps db. siteURL is the public base that candidate URLs are built
// from.
func New(db *gorm.DB, siteURL string, log *logger.Logger) *Store {
	util.Assert(db != nil, "store.New nil db")

	return &Store{
		db:      db,
		siteURL: strings.TrimRight(siteURL, "/"),
		log:     logger.OrNop(log).With("service", "Store"),
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Record{}, &RecordMeta{}, &Author{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Store) storageError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.E(errs.KindNotFound, "Post not found.", ErrNotFound)
	}
	s.log.Error("store operation failed", "op", op, "error", err)
	return errs.Storage("The content store failed.", fmt.Errorf("%s: %w", op, err))
}
