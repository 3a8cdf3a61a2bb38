package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ErrRecordNotFound is returned by Get for unknown IDs
var ErrRecordNotFound = errors.New("result record not found")

// ResultStorage implements the ResultStorage interface for Badger
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

// Append inserts a record. Existing records are never overwritten.
func (s *ResultStorage) Append(ctx context.Context, record *models.ResultRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.ID == "" {
		return fmt.Errorf("record ID is required")
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	if err := s.db.Store().Insert(record.ID, record); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("record %s already stored: %w", record.ID, err)
		}
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

func (s *ResultStorage) Get(ctx context.Context, id string) (*models.ResultRecord, error) {
	var record models.ResultRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

// ListByCompany returns the newest records of a company, matched case-insensitively
func (s *ResultStorage) ListByCompany(ctx context.Context, company string, limit int) ([]*models.ResultRecord, error) {
	name := strings.TrimSpace(company)
	query := badgerhold.Where("Company").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		value, ok := ra.Field().(string)
		return ok && strings.EqualFold(strings.TrimSpace(value), name), nil
	}).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	return s.find(query)
}

// ListByRun returns the records of one batch in the order they were emitted
func (s *ResultStorage) ListByRun(ctx context.Context, runID string) ([]*models.ResultRecord, error) {
	return s.find(badgerhold.Where("RunID").Eq(runID).SortBy("CreatedAt"))
}

func (s *ResultStorage) ListRecent(ctx context.Context, limit int) ([]*models.ResultRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	return s.find(query)
}

func (s *ResultStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ResultRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(count), nil
}

func (s *ResultStorage) find(query *badgerhold.Query) ([]*models.ResultRecord, error) {
	var records []models.ResultRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	result := make([]*models.ResultRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
