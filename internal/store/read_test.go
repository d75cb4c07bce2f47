package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRuns_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-c", "run-a", "run-b"} {
		require.NoError(t, s.WriteRun(ctx, createTestRun(id)))
	}

	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-c", runs[2].ID)

	latest, err := s.ReadLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-c", latest.ID)
}

func TestReadRuns_Empty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	_, err = s.ReadLatestRun(ctx)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReadFrames_OrderedByIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	for _, idx := range []uint64{2, 0, 1} {
		require.NoError(t, s.WriteFrame(ctx, createTestReport("run-1", idx)))
	}

	frames, err := s.ReadFrames(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, uint64(i), f.Index)
		assert.Len(t, f.Times, 1)
		for _, w := range f.Writes {
			assert.Equal(t, f.Index, w.Frame)
		}
	}
}

func TestReadFrames_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	frames, err := s.ReadFrames(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, frames)
	assert.Empty(t, frames)
}

func TestReadFieldHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))
	require.NoError(t, s.WriteFrame(ctx, createTestReport("run-1", 0)))
	require.NoError(t, s.WriteFrame(ctx, createTestReport("run-1", 1)))

	hist, err := s.ReadFieldHistory(ctx, "run-1", "ship", "hp")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, uint64(0), hist[0].Frame)
	assert.Equal(t, uint64(1), hist[1].Frame)
	assert.Equal(t, "75", hist[1].Value)

	none, err := s.ReadFieldHistory(ctx, "run-1", "ship", "shield")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
