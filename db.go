package main

import (
	"context"
	"errors"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"baken/internal/config"
	"baken/models"
)

var ErrTicketNotFound = eris.New("ticket not found")

// DefaultListLimit and MaxListLimit bound GET /tickets.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store persists decoded tickets.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func openDB(cfg config.StoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, eris.Wrapf(err, "connect %s database", cfg.Driver)
	}
	return db, nil
}

// openStore connects and, when configured, migrates the schema.
func openStore(cfg config.StoreConfig, log *zap.Logger) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := newStore(db, log)
	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newStore(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

// Migrate creates or updates the tables. Tickets go first so the bet and
// source foreign keys can be applied.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&models.Ticket{}); err != nil {
		return eris.Wrap(err, "migrate tickets")
	}
	// the child tables are migrated individually so a failure on one doesn't block the other
	if err := s.db.AutoMigrate(&models.Bet{}); err != nil {
		s.log.Warn("migration warning", zap.String("table", "bets"), zap.Error(err))
	}
	if err := s.db.AutoMigrate(&models.ScanSource{}); err != nil {
		s.log.Warn("migration warning", zap.String("table", "scan_sources"), zap.Error(err))
	}
	return nil
}

// Save inserts t unless a ticket with the same code exists, in which case
// t is replaced by the stored row. created reports which happened.
func (s *Store) Save(ctx context.Context, t *models.Ticket) (created bool, err error) {
	var id uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Ticket
		err := tx.Where("code = ?", t.Code).First(&existing).Error
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil && isUniqueConstraintError(err) {
		// lost a race with a concurrent save of the same code
		created = false
		var existing models.Ticket
		err = s.db.WithContext(ctx).Where("code = ?", t.Code).First(&existing).Error
		id = existing.ID
	}
	if err != nil {
		return false, eris.Wrapf(err, "save ticket %s", shortCode(t.Code))
	}
	if !created {
		stored, err := s.Get(ctx, id)
		if err != nil {
			return false, err
		}
		*t = *stored
	}
	return created, nil
}

// List returns tickets newest first with their bets.
func (s *Store) List(ctx context.Context, limit int) ([]models.Ticket, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	var out []models.Ticket
	err := s.db.WithContext(ctx).
		Preload("Bets", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("id desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, eris.Wrap(err, "list tickets")
	}
	return out, nil
}

// Get fetches one ticket with bets and scan sources.
func (s *Store) Get(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	err := s.preload(s.db.WithContext(ctx)).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get ticket %d", id)
	}
	return &t, nil
}

func (s *Store) preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Bets", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Sources", func(db *gorm.DB) *gorm.DB { return db.Order("slot") })
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func shortCode(code string) string {
	if len(code) > 20 {
		return code[:20] + "..."
	}
	return code
}
