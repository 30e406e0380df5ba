// Package streaming implements checkpoint/resume for server-streaming calls:
// periodic progress snapshots so a broken stream can resume from the last
// checkpoint instead of restarting from scratch.
package streaming

import (
	"sync"
	"time"
)

// Checkpoint is one saved point in a stream's progress.
type Checkpoint struct {
	Timestamp       time.Time
	Metadata        map[string]interface{}
	LastContent     string
	StreamID        string
	LastSequence    int
	ProgressPercent float64
}

// StreamState tracks one stream's lifecycle and checkpoint history.
type StreamState struct {
	StartedAt     time.Time
	StreamID      string
	Error         string
	Checkpoints   []Checkpoint
	TotalMessages int
	Completed     bool
}

// LastCheckpoint returns the most recent checkpoint, or nil if none exist.
func (s *StreamState) LastCheckpoint() *Checkpoint {
	if len(s.Checkpoints) == 0 {
		return nil
	}
	return &s.Checkpoints[len(s.Checkpoints)-1]
}

// CanResume reports whether this stream has somewhere to resume from.
func (s *StreamState) CanResume() bool {
	return !s.Completed && s.LastCheckpoint() != nil
}

const (
	DefaultCheckpointInterval = 10
	DefaultMaxStreams         = 100
	DefaultTTL                = time.Hour
)

// CheckpointManager owns every in-flight stream's state, bounded by
// max_streams and ttl, evicted creation-time-oldest-first at capacity.
type CheckpointManager struct {
	mu                 sync.Mutex
	streams            map[string]*StreamState
	checkpointInterval int
	maxStreams         int
	ttl                time.Duration
}

func NewCheckpointManager(checkpointInterval, maxStreams int, ttl time.Duration) *CheckpointManager {
	if checkpointInterval <= 0 {
		checkpointInterval = DefaultCheckpointInterval
	}
	if maxStreams <= 0 {
		maxStreams = DefaultMaxStreams
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CheckpointManager{
		streams:            make(map[string]*StreamState),
		checkpointInterval: checkpointInterval,
		maxStreams:         maxStreams,
		ttl:                ttl,
	}
}

func (m *CheckpointManager) StartStream(streamID string) *StreamState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupExpiredLocked()
	if len(m.streams) >= m.maxStreams {
		m.evictOldestLocked()
	}

	state := &StreamState{StreamID: streamID, StartedAt: time.Now()}
	m.streams[streamID] = state
	return state
}

// Checkpoint records progress for streamID. A checkpoint is only actually
// saved every checkpoint_interval sequence numbers, or at 100% progress, to
// bound memory use on long streams.
func (m *CheckpointManager) Checkpoint(streamID string, sequence int, content string, progressPercent float64, metadata map[string]interface{}) *Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.streams[streamID]
	if !ok {
		return nil
	}
	state.TotalMessages = sequence + 1

	if sequence%m.checkpointInterval != 0 && progressPercent < 100 {
		return nil
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	cp := Checkpoint{
		StreamID:        streamID,
		LastSequence:    sequence,
		LastContent:     content,
		ProgressPercent: progressPercent,
		Timestamp:       time.Now(),
		Metadata:        metadata,
	}
	state.Checkpoints = append(state.Checkpoints, cp)
	return &cp
}

func (m *CheckpointManager) GetResumePoint(streamID string) *Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.streams[streamID]
	if !ok || !state.CanResume() {
		return nil
	}
	return state.LastCheckpoint()
}

func (m *CheckpointManager) CompleteStream(streamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.streams[streamID]; ok {
		state.Completed = true
	}
}

func (m *CheckpointManager) FailStream(streamID, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.streams[streamID]; ok {
		state.Error = errMsg
	}
}

func (m *CheckpointManager) GetState(streamID string) *StreamState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[streamID]
}

func (m *CheckpointManager) cleanupExpiredLocked() {
	now := time.Now()
	for id, state := range m.streams {
		if now.Sub(state.StartedAt) > m.ttl {
			delete(m.streams, id)
		}
	}
}

func (m *CheckpointManager) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, state := range m.streams {
		if first || state.StartedAt.Before(oldestAt) {
			oldestID, oldestAt, first = id, state.StartedAt, false
		}
	}
	if oldestID != "" {
		delete(m.streams, oldestID)
	}
}

// Stats reports aggregate stream counts for observability.
type Stats struct {
	TotalStreams     int
	ActiveStreams    int
	CompletedStreams int
	FailedStreams    int
}

func (m *CheckpointManager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Stats
	s.TotalStreams = len(m.streams)
	for _, state := range m.streams {
		if !state.Completed {
			s.ActiveStreams++
		} else {
			s.CompletedStreams++
		}
		if state.Error != "" {
			s.FailedStreams++
		}
	}
	return s
}
