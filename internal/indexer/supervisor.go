package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Supervisor runs one ingestion loop per network. Loops share nothing but
// the store; a batch-fatal error in any loop stops the group so process
// supervision can restart everything with checkpoints intact.
type Supervisor struct {
	runners []*Runner
	logger  *zap.Logger
}

// NewSupervisor wires the per-network runners together.
func NewSupervisor(runners []*Runner, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{runners: runners, logger: logger}
}

// Run blocks until the context is cancelled or a loop fails.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.runners) == 0 {
		return fmt.Errorf("no runners configured")
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, runner := range s.runners {
		runner := runner
		group.Go(func() error {
			return runner.Loop(ctx)
		})
	}
	return group.Wait()
}
