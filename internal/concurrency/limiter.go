// Package concurrency provides the three named bounded semaphores that
// gate fan-out within a job: Embedding, Reasoning, and FileRead slots.
package concurrency

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/iasik/orchestrator/internal/errs"
)

// Slot is a named, bounded concurrency gate. Acquire blocks until a
// slot is free or ctx is cancelled; Release must be called on every
// code path that successfully acquired, including cancellation after
// acquire.
type Slot struct {
	name    string
	sem     *semaphore.Weighted
	waiting int64
}

// NewSlot builds a slot with the given capacity.
func NewSlot(name string, capacity int) *Slot {
	return &Slot{name: name, sem: semaphore.NewWeighted(int64(capacity))}
}

// Acquire blocks until a slot is available or ctx is done. Cancellation
// before acquisition returns errs.ErrCancelled.
func (s *Slot) Acquire(ctx context.Context) error {
	atomic.AddInt64(&s.waiting, 1)
	defer atomic.AddInt64(&s.waiting, -1)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s slot: %w", s.name, errs.ErrCancelled)
	}
	return nil
}

// Release frees one held slot.
func (s *Slot) Release() {
	s.sem.Release(1)
}

// QueueDepth returns the number of goroutines currently blocked on Acquire.
func (s *Slot) QueueDepth() int64 {
	return atomic.LoadInt64(&s.waiting)
}

// Limiter owns the three named slots for one worker process.
type Limiter struct {
	Embedding *Slot
	Reasoning *Slot
	FileRead  *Slot
}

// Config carries the slot capacities from the Configuration Surface's
// Concurrency section.
type Config struct {
	Embedding int
	Reasoning int
	FileRead  int
}

// DefaultConfig mirrors spec.md §6 Concurrency defaults.
func DefaultConfig() Config {
	return Config{Embedding: 4, Reasoning: 2, FileRead: 8}
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		Embedding: NewSlot("embedding", cfg.Embedding),
		Reasoning: NewSlot("reasoning", cfg.Reasoning),
		FileRead:  NewSlot("file-read", cfg.FileRead),
	}
}

// EmbeddingQueueDepth exposes the embedding slot's wait-queue length.
func (l *Limiter) EmbeddingQueueDepth() int64 { return l.Embedding.QueueDepth() }

// ReasoningQueueDepth exposes the reasoning slot's wait-queue length.
func (l *Limiter) ReasoningQueueDepth() int64 { return l.Reasoning.QueueDepth() }
