package badger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/models"
)

func newTestStorage(t *testing.T) *ResultStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewResultStorage(db, logger).(*ResultStorage)
}

func record(id, runID, company string, created time.Time) *models.ResultRecord {
	var phases models.PhaseSnapshot
	phases.Add("Preclinical", 4)
	phases.Add("Phase 1", 2)
	phases.Add("Approved", 1)

	r := models.NewStructuredRecord(company, "https://synapse.test/company/"+id, &models.Extraction{Phases: phases})
	r.ID = id
	r.RunID = runID
	r.CreatedAt = created
	return r
}

func TestResultStorage_AppendAndGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, storage.Append(ctx, record("r1", "run-1", "Acme Bio", now)))

	got, err := storage.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Bio", got.Company)
	assert.Equal(t, models.OutcomeStructured, got.Kind)
	assert.Equal(t, []string{"Preclinical", "Phase 1", "Approved"}, got.PipelineSnapshot.Labels())
	assert.True(t, now.Equal(got.CreatedAt))

	raw, err := json.Marshal(got.PipelineSnapshot)
	require.NoError(t, err)
	assert.Equal(t, `{"Preclinical":4,"Phase 1":2,"Approved":1}`, string(raw))
}

func TestResultStorage_AppendOnly(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Append(ctx, record("r1", "run-1", "Acme", time.Now())))
	err := storage.Append(ctx, record("r1", "run-2", "Other", time.Now()))
	require.Error(t, err)

	got, err := storage.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)
}

func TestResultStorage_RejectsInvalidRecords(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	assert.Error(t, storage.Append(ctx, nil))
	assert.Error(t, storage.Append(ctx, record("", "run-1", "Acme", time.Now())))

	mixed := record("r2", "run-1", "Acme", time.Now())
	mixed.Error = models.ErrPipelineNotFound
	assert.Error(t, storage.Append(ctx, mixed))
}

func TestResultStorage_GetNotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestResultStorage_Listing(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, storage.Append(ctx, record("a1", "run-1", "Acme Bio", base)))
	require.NoError(t, storage.Append(ctx, record("b1", "run-1", "Beta", base.Add(time.Minute))))
	require.NoError(t, storage.Append(ctx, record("a2", "run-2", "ACME BIO", base.Add(2*time.Minute))))
	failure := models.NewFailureRecord("Gamma", "", models.ErrSearchInputNotFound, []string{})
	failure.ID = "g1"
	failure.RunID = "run-2"
	failure.CreatedAt = base.Add(3 * time.Minute)
	require.NoError(t, storage.Append(ctx, failure))

	byCompany, err := storage.ListByCompany(ctx, " acme bio ", 0)
	require.NoError(t, err)
	require.Len(t, byCompany, 2)
	assert.Equal(t, "a2", byCompany[0].ID)
	assert.Equal(t, "a1", byCompany[1].ID)

	limited, err := storage.ListByCompany(ctx, "Acme Bio", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a2", limited[0].ID)

	byRun, err := storage.ListByRun(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, byRun, 2)
	assert.Equal(t, "a2", byRun[0].ID)
	assert.Equal(t, models.ErrSearchInputNotFound, byRun[1].Error)

	recent, err := storage.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "g1", recent[0].ID)

	count, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
