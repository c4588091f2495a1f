package prune

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditStore struct {
	deleteFunc func(ctx context.Context, cutoff time.Time) (int64, error)

	cutoffs []time.Time
}

func (f *fakeAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.deleteFunc == nil {
		return 0, nil
	}
	return f.deleteFunc(ctx, cutoff)
}

func TestPrunerDisabledWithoutRetention(t *testing.T) {
	t.Parallel()

	p := NewAuditPruner(nil, &fakeAuditStore{}, 0, "17 3 * * *")
	require.NoError(t, p.Start())
	assert.Nil(t, p.cron)
	p.Stop()
}

func TestPrunerRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	p := NewAuditPruner(nil, &fakeAuditStore{}, 30, "not a schedule")
	require.Error(t, p.Start())
}

func TestPrunerRunOnceUsesRetentionCutoff(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{
		deleteFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 12, nil
		},
	}
	p := NewAuditPruner(nil, store, 30, "17 3 * * *")
	p.runOnce()

	require.Len(t, store.cutoffs, 1)
	want := time.Now().UTC().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, want, store.cutoffs[0], time.Minute)
}

func TestPrunerStartStop(t *testing.T) {
	t.Parallel()

	p := NewAuditPruner(nil, &fakeAuditStore{}, 30, "17 3 * * *")
	require.NoError(t, p.Start())
	p.Stop()
}
