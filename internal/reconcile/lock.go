package reconcile

import (
	"context"
	"sync"
)

// ProjectLocks serializes reconciliation per project: the engine's
// read-then-write over the open-finding set must run at-most-one-in-flight
// for a given project, while unrelated projects proceed in parallel.
type ProjectLocks struct {
	mu    sync.Mutex
	locks map[uint]*projectLock
}

type projectLock struct {
	ch   chan struct{}
	refs int
}

func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{locks: make(map[uint]*projectLock)}
}

// Acquire blocks until the project lock is free or ctx is done. The
// returned release function must be called exactly once.
func (p *ProjectLocks) Acquire(ctx context.Context, projectID uint) (func(), error) {
	p.mu.Lock()
	l, ok := p.locks[projectID]
	if !ok {
		l = &projectLock{ch: make(chan struct{}, 1)}
		p.locks[projectID] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() { p.release(projectID, l) }, nil
	case <-ctx.Done():
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, projectID)
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// TryAcquire returns false immediately when another reconciliation for the
// project is in flight.
func (p *ProjectLocks) TryAcquire(projectID uint) (func(), bool) {
	p.mu.Lock()
	l, ok := p.locks[projectID]
	if !ok {
		l = &projectLock{ch: make(chan struct{}, 1)}
		p.locks[projectID] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() { p.release(projectID, l) }, true
	default:
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, projectID)
		}
		p.mu.Unlock()
		return nil, false
	}
}

func (p *ProjectLocks) release(projectID uint, l *projectLock) {
	<-l.ch
	p.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, projectID)
	}
	p.mu.Unlock()
}
