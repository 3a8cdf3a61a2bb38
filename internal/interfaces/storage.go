package interfaces

import (
	"context"

	"github.com/ternarybob/pharmascout/internal/models"
)

// ResultStorage persists result records. Records are append-only.
type ResultStorage interface {
	Append(ctx context.Context, record *models.ResultRecord) error
	Get(ctx context.Context, id string) (*models.ResultRecord, error)
	ListByCompany(ctx context.Context, company string, limit int) ([]*models.ResultRecord, error)
	ListByRun(ctx context.Context, runID string) ([]*models.ResultRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.ResultRecord, error)
	Count(ctx context.Context) (int, error)
}

// ArtifactStore writes diagnostic artifacts keyed by entity name
type ArtifactStore interface {
	SaveScreenshot(ctx context.Context, entity string, png []byte) (string, error)
}

// DiagnosticSink captures diagnostics of a failing run. It is write-only and never fails the run.
type DiagnosticSink interface {
	CaptureFailure(ctx context.Context, entity string, code models.ErrorCode, page Page)
}

// ResultPublisher fans out emitted records to other systems
type ResultPublisher interface {
	Publish(ctx context.Context, record *models.ResultRecord) error
	Close() error
}

// StorageManager owns the persistent stores and their lifecycle
type StorageManager interface {
	ResultStorage() ResultStorage
	Close() error
}
