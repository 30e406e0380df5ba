package streaming

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager_ChecksAtInterval(t *testing.T) {
	m := NewCheckpointManager(10, 100, time.Hour)
	m.StartStream("s1")

	var saved int
	for seq := 1; seq <= 25; seq++ {
		if cp := m.Checkpoint("s1", seq, "chunk", float64(seq), nil); cp != nil {
			saved++
		}
	}

	assert.Equal(t, 2, saved, "only sequence numbers divisible by the interval should be saved")
}

func TestCheckpointManager_AlwaysSavesAt100Percent(t *testing.T) {
	m := NewCheckpointManager(10, 100, time.Hour)
	m.StartStream("s1")

	cp := m.Checkpoint("s1", 7, "final", 100, nil)
	require.NotNil(t, cp, "100% progress must force a checkpoint regardless of interval")
}

func TestCheckpointManager_ResumePoint(t *testing.T) {
	m := NewCheckpointManager(1, 100, time.Hour)
	m.StartStream("s1")
	m.Checkpoint("s1", 1, "a", 50, nil)
	m.Checkpoint("s1", 2, "b", 99, nil)

	rp := m.GetResumePoint("s1")
	require.NotNil(t, rp)
	assert.Equal(t, 2, rp.LastSequence)

	m.CompleteStream("s1")
	assert.Nil(t, m.GetResumePoint("s1"), "a completed stream has nothing to resume")
}

func TestCheckpointManager_EvictsOldestAtCapacity(t *testing.T) {
	m := NewCheckpointManager(10, 2, time.Hour)
	m.StartStream("s1")
	m.StartStream("s2")
	m.StartStream("s3")

	assert.Nil(t, m.GetState("s1"), "oldest stream must be evicted once max_streams is exceeded")
	assert.NotNil(t, m.GetState("s3"))
}

func TestResumableStream_FailureLeavesResumableCheckpoint(t *testing.T) {
	m := NewCheckpointManager(1, 100, time.Hour)

	factory := func(ctx context.Context, ch chan<- Message) error {
		defer close(ch)
		for i := 1; i <= 3; i++ {
			select {
			case ch <- Message{Content: "chunk", ProgressPercent: float64(i) * 33}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return errors.New("connection dropped")
	}

	rs := NewResumableStream("stream-1", m, factory, nil)

	var received []Message
	err := rs.Run(context.Background(), func(msg Message) { received = append(received, msg) })
	require.Error(t, err)
	assert.Len(t, received, 3)

	state := m.GetState("stream-1")
	require.NotNil(t, state)
	assert.Equal(t, "connection dropped", state.Error)
	assert.True(t, state.CanResume())
}
