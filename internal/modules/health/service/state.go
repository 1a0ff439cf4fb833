package service

import (
	"sync/atomic"
	"time"
)

// State tracks liveness of the evaluation loop. It becomes ready after the
// first completed cycle.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastCycleUnix atomic.Int64
	cycles        atomic.Int64
	assets        atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// CycleDone records a finished evaluation cycle.
func (s *State) CycleDone(at time.Time, assets int) {
	s.lastCycleUnix.Store(at.Unix())
	s.cycles.Add(1)
	s.assets.Store(int64(assets))
	s.ready.Store(true)
}

func (s *State) LastCycle() time.Time {
	u := s.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Cycles() int64 { return s.cycles.Load() }
func (s *State) Assets() int64 { return s.assets.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
