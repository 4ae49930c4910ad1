package audit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paycycle/paycycle/internal/audit"
	_ "github.com/paycycle/paycycle/testing"
)

type fakeRepo struct {
	entries []audit.Entry

	lastFilters audit.Filters
	lastLimit   int
	lastOffset  int
}

func (f *fakeRepo) List(_ context.Context, filters audit.Filters, limit, offset int) ([]audit.Entry, error) {
	f.lastFilters = filters
	f.lastLimit = limit
	f.lastOffset = offset
	if offset >= len(f.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.entries) {
		end = len(f.entries)
	}
	return f.entries[offset:end], nil
}

func seedEntries(n int) []audit.Entry {
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	entries := make([]audit.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, audit.Entry{
			ID:         int64(n - i),
			ActorID:    7,
			Action:     "payroll.close",
			Entity:     "closure_batch",
			EntityID:   "batch",
			OccurredAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return entries
}

func TestTimelinePaginates(t *testing.T) {
	repo := &fakeRepo{entries: seedEntries(25)}
	svc := audit.NewService(repo)

	result, err := svc.Timeline(context.Background(), audit.Filters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Entries, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 21, repo.lastLimit)

	result, err = svc.Timeline(context.Background(), audit.Filters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Entries, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 20, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &fakeRepo{entries: seedEntries(3)}
	svc := audit.NewService(repo)

	result, err := svc.Timeline(context.Background(), audit.Filters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 50, result.Paging.PageSize)
	require.Equal(t, 1, result.Paging.Page)
}

func TestExportCSV(t *testing.T) {
	repo := &fakeRepo{entries: []audit.Entry{
		{
			ID:         1,
			ActorID:    7,
			Action:     "payroll.close",
			Entity:     "closure_batch",
			EntityID:   "0d4cbd52-273c-4e74-b834-bf58a80d2a3b",
			Meta:       map[string]any{"total_records_moved": 5},
			OccurredAt: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
		},
	}}
	svc := audit.NewService(repo)

	data, err := svc.ExportCSV(context.Background(), audit.Filters{Entity: "closure_batch"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "occurred_at,actor_id,action,entity,entity_id,meta", lines[0])
	require.Contains(t, lines[1], "2024-03-01T09:00:00Z")
	require.Contains(t, lines[1], "payroll.close")
	require.Contains(t, lines[1], "total_records_moved")
	require.Equal(t, "closure_batch", repo.lastFilters.Entity)
}
