package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/savaki/sc-packager/internal/dao/compiledao"
	"github.com/savaki/sc-packager/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryHistory struct {
	records []compiledao.Record // newest first
	deleted []compiledao.ID
}

func (m *memoryHistory) Query(_ context.Context, pk compiledao.PK) ([]compiledao.Record, error) {
	var out []compiledao.Record
	for _, r := range m.records {
		if r.PK == pk {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryHistory) Latest(ctx context.Context, pk compiledao.PK) (*compiledao.Record, error) {
	records, _ := m.Query(ctx, pk)
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (m *memoryHistory) Find(_ context.Context, id compiledao.ID) (compiledao.Record, error) {
	for _, r := range m.records {
		if r.GetID() == id {
			return r, nil
		}
	}
	return compiledao.Record{}, errors.New("history record not found")
}

func (m *memoryHistory) Delete(_ context.Context, id compiledao.ID) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func newHistory() *memoryHistory {
	pk := compiledao.NewPK("orders-dev", "create")
	return &memoryHistory{
		records: []compiledao.Record{
			{PK: pk, SK: "3", Branch: "update", Slot: "update", Digest: "d3", CreatedAt: 3},
			{PK: pk, SK: "2", Branch: "primary", Slot: "primary", Digest: "d2", CreatedAt: 2},
			{PK: pk, SK: "1", Branch: "primary", Slot: "primary", Digest: "d1", CreatedAt: 1},
			{PK: compiledao.NewPK("orders-prd", "create"), SK: "9", Digest: "p1"},
		},
	}
}

func decodeEntries(t *testing.T, data []byte) []historyEntry {
	t.Helper()
	var entries []historyEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	return entries
}

func TestRunHistory(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantIDs []compiledao.ID
	}{
		{
			name:    "all records",
			args:    []string{"--function", "create", "--json"},
			wantIDs: []compiledao.ID{"orders-dev/create:3", "orders-dev/create:2", "orders-dev/create:1"},
		},
		{
			name:    "limited",
			args:    []string{"--function", "create", "--json", "--limit", "2"},
			wantIDs: []compiledao.ID{"orders-dev/create:3", "orders-dev/create:2"},
		},
		{
			name:    "latest",
			args:    []string{"--function", "create", "--json", "--latest"},
			wantIDs: []compiledao.ID{"orders-dev/create:3"},
		},
		{
			name:    "no history",
			args:    []string{"--function", "list", "--json"},
			wantIDs: []compiledao.ID{},
		},
		{
			name:    "no latest",
			args:    []string{"--function", "list", "--json", "--latest"},
			wantIDs: []compiledao.ID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := newFlagContext(t, &out, historyFlags, tt.args...)
			require.NoError(t, runHistory(c, newHistory(), "orders-dev"))

			ids := []compiledao.ID{}
			for _, entry := range decodeEntries(t, out.Bytes()) {
				assert.Equal(t, entry.ID, entry.GetID())
				ids = append(ids, entry.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestRunHistoryText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runHistory(newFlagContext(t, &out, historyFlags, "--function", "create", "--latest"), newHistory(), "orders-dev"))
	assert.Contains(t, out.String(), "orders-dev/create:3")
	assert.Contains(t, out.String(), "d3")
	assert.NotContains(t, out.String(), "d2")

	out.Reset()
	require.NoError(t, runHistory(newFlagContext(t, &out, historyFlags, "--function", "list"), newHistory(), "orders-dev"))
	assert.Contains(t, out.String(), "No history for orders-dev/list")
}

func TestRunHistoryRequiresFunction(t *testing.T) {
	err := runHistory(newFlagContext(t, &bytes.Buffer{}, historyFlags), newHistory(), "orders-dev")
	assert.Error(t, err)
}

func TestRunHistoryDelete(t *testing.T) {
	t.Run("deletes record of stack", func(t *testing.T) {
		history := newHistory()
		var out bytes.Buffer
		c := newFlagContext(t, &out, historyFlags, "--delete", "orders-dev/create:2")

		require.NoError(t, runHistory(c, history, "orders-dev"))
		assert.Equal(t, []compiledao.ID{"orders-dev/create:2"}, history.deleted)
		assert.Contains(t, out.String(), "Deleted orders-dev/create:2")
	})

	t.Run("rejects record of another stack", func(t *testing.T) {
		history := newHistory()
		c := newFlagContext(t, &bytes.Buffer{}, historyFlags, "--delete", "orders-prd/create:9")

		assert.Error(t, runHistory(c, history, "orders-dev"))
		assert.Empty(t, history.deleted)
	})

	t.Run("unknown record", func(t *testing.T) {
		history := newHistory()
		c := newFlagContext(t, &bytes.Buffer{}, historyFlags, "--delete", "orders-dev/create:404")

		assert.Error(t, runHistory(c, history, "orders-dev"))
		assert.Empty(t, history.deleted)
	})
}

func TestHistoryTable(t *testing.T) {
	ctx := context.Background()
	store := services.NewEnvParameterStore()

	t.Setenv("HISTORY_TABLE", "")
	got, err := historyTable(ctx, "explicit", store, "dev")
	require.NoError(t, err)
	assert.Equal(t, "explicit", got)

	got, err = historyTable(ctx, "", store, "prd")
	require.NoError(t, err)
	assert.Equal(t, "sc-packager-prd-history", got)

	t.Setenv("HISTORY_TABLE", "from-parameter")
	got, err = historyTable(ctx, "", store, "prd")
	require.NoError(t, err)
	assert.Equal(t, "from-parameter", got)
}
