package storage

import (
	"context"
	"errors"
	"time"

	"raffle/internal/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type SqliteStorage struct {
	db *gorm.DB
}

// NewSqliteStorage opens (and migrates) the database at path. A single
// connection serializes every transaction, which is what the program relies on
// for its read-modify-write operations.
func NewSqliteStorage(path string) (*SqliteStorage, error) {
	logger.Debug("initializing database...", zap.String("path", path))

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	err = db.AutoMigrate(
		&Config{},
		&Round{},
		&Collection{},
		&Ticket{},
		&TokenAccount{},
		&RandomnessRequest{},
		&Event{},
		&ConsumedSignature{},
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{db: db}, nil
}

func (s *SqliteStorage) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SqliteStorage{db: tx})
	})
}

func (s *SqliteStorage) GetConfig(ctx context.Context, address string) (*Config, error) {
	var config Config
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&config).Error; err != nil {
		return nil, translate(err)
	}
	return &config, nil
}

func (s *SqliteStorage) SaveConfig(ctx context.Context, config *Config) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(config).Error
}

func (s *SqliteStorage) GetRound(ctx context.Context, address string) (*Round, error) {
	var round Round
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&round).Error; err != nil {
		return nil, translate(err)
	}
	return &round, nil
}

func (s *SqliteStorage) SaveRound(ctx context.Context, round *Round) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(round).Error
}

func (s *SqliteStorage) CreateCollection(ctx context.Context, collection *Collection) error {
	return translate(s.db.WithContext(ctx).Create(collection).Error)
}

func (s *SqliteStorage) GetCollection(ctx context.Context, address string) (*Collection, error) {
	var collection Collection
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&collection).Error; err != nil {
		return nil, translate(err)
	}
	return &collection, nil
}

func (s *SqliteStorage) CreateTicket(ctx context.Context, ticket *Ticket) error {
	return translate(s.db.WithContext(ctx).Create(ticket).Error)
}

func (s *SqliteStorage) GetTicket(ctx context.Context, address string) (*Ticket, error) {
	var ticket Ticket
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&ticket).Error; err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}

func (s *SqliteStorage) GetTicketsByRound(ctx context.Context, roundID uint64) ([]*Ticket, error) {
	var tickets []*Ticket
	err := s.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("sequence_index").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *SqliteStorage) GetTicketsByOwner(ctx context.Context, owner string) ([]*Ticket, error) {
	var tickets []*Ticket
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("round_id, sequence_index").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *SqliteStorage) GetTokenAccount(ctx context.Context, address string) (*TokenAccount, error) {
	var account TokenAccount
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *SqliteStorage) UpdateTokenAccount(ctx context.Context, account *TokenAccount) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(account).Error
}

func (s *SqliteStorage) CreateRandomnessRequest(ctx context.Context, request *RandomnessRequest) error {
	return translate(s.db.WithContext(ctx).Create(request).Error)
}

func (s *SqliteStorage) GetRandomnessRequest(ctx context.Context, handle string) (*RandomnessRequest, error) {
	var request RandomnessRequest
	if err := s.db.WithContext(ctx).Where("handle = ?", handle).First(&request).Error; err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

func (s *SqliteStorage) GetPendingRandomnessRequests(ctx context.Context, limit int) ([]*RandomnessRequest, error) {
	logger.Debug("getting pending randomness requests...")

	var requests []*RandomnessRequest
	err := s.db.WithContext(ctx).
		Where("status = ?", RequestPending).
		Order("created_at").
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}

	logger.Debug("getting pending randomness requests... done", zap.Int("count", len(requests)))
	return requests, nil
}

func (s *SqliteStorage) UpdateRandomnessRequest(ctx context.Context, request *RandomnessRequest) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "handle"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"randomness",
			"proof",
			"attempts",
			"last_error",
			"fulfilled_at",
		}),
	}).Create(request).Error
}

// ConsumeSignature stores record and fails with ErrAlreadyExists if the
// signature was consumed before. Records consumed before expiredBefore are
// dropped first.
func (s *SqliteStorage) ConsumeSignature(ctx context.Context, record *ConsumedSignature, expiredBefore time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("consumed_at < ?", expiredBefore.Unix()).Delete(&ConsumedSignature{}).Error
		if err != nil {
			return err
		}
		return translate(tx.Create(record).Error)
	})
}

func (s *SqliteStorage) AppendEvent(ctx context.Context, event *Event) error {
	return translate(s.db.WithContext(ctx).Create(event).Error)
}

func (s *SqliteStorage) GetEvents(ctx context.Context, eventType string, limit int) ([]*Event, error) {
	query := s.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var events []*Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	default:
		return err
	}
}
