package eventlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_RefreshThenTotals(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := OpenIndex(ctx, path)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Refresh(ctx, "wf1", &Summary{
		TotalEvents:        4,
		Decisions:          []Entry{{}, {}},
		AlignmentChecks:    []Entry{{}},
		PerformanceMetrics: []Entry{{}},
	}))

	totals, err := idx.Totals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "wf1", totals[0].WorkflowID)
	assert.Equal(t, 4, totals[0].TotalEvents)
	assert.Equal(t, 2, totals[0].Decisions)
}

func TestIndex_RefreshIsUpsert(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := OpenIndex(ctx, path)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Refresh(ctx, "wf1", &Summary{TotalEvents: 1}))
	require.NoError(t, idx.Refresh(ctx, "wf1", &Summary{TotalEvents: 9}))

	totals, err := idx.Totals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 9, totals[0].TotalEvents)
}
