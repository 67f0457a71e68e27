package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refractlabs/refract-core/internal/domain"
)

func openTestStore(t *testing.T) *SQL {
	t.Helper()
	store, err := OpenSQL(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenSQL_RejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQL("mysql", "dsn", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported journal driver")
}

func TestSQL_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := domain.Entry{
		ID:   uuid.New(),
		At:   base,
		Kind: domain.EntryMovement,
		Payload: domain.MovementRecord{
			From:   domain.MustParseAddress("0x1111111111111111111111111111111111111111"),
			To:     domain.MustParseAddress("0x2222222222222222222222222222222222222222"),
			Amount: "985",
			Label:  "net",
		},
	}
	second := domain.Entry{
		ID:      uuid.New(),
		At:      base.Add(time.Second),
		Kind:    domain.EntryConfigChanged,
		Payload: domain.ConfigChangedRecord{Setting: "trigger_mode", Detail: "CONFETTI"},
	}
	require.NoError(t, store.Record(context.Background(), first))
	require.NoError(t, store.Record(context.Background(), second))

	got, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, domain.EntryConfigChanged, got[0].Kind)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, base, got[1].At)

	var movement domain.MovementRecord
	raw, ok := got[1].Payload.(json.RawMessage)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(raw, &movement))
	assert.Equal(t, "985", movement.Amount)
	assert.Equal(t, "net", movement.Label)
}

func TestSQL_RecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := domain.Entry{
			ID:      uuid.New(),
			At:      base.Add(time.Duration(i) * time.Second),
			Kind:    domain.EntryMovement,
			Payload: domain.MovementRecord{Amount: "1"},
		}
		require.NoError(t, store.Record(context.Background(), e))
	}

	got, err := store.Recent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(4*time.Second), got[0].At)
	assert.Equal(t, base.Add(2*time.Second), got[2].At)
}

func TestSQL_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")

	store, err := OpenSQL(DriverSQLite, path, nil)
	require.NoError(t, err)
	e := domain.Entry{
		ID:      uuid.New(),
		At:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Kind:    domain.EntryPayoutIssued,
		Payload: domain.PayoutIssuedRecord{Amount: "10", PoolRemaining: "90"},
	}
	require.NoError(t, store.Record(context.Background(), e))
	require.NoError(t, store.Close())

	reopened, err := OpenSQL(DriverSQLite, path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
}
