package goGuard

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// attemptPruner is implemented by logs that can drop old rows.
type attemptPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// logPruner adapts an attemptPruner to the janitor's Sweep contract.
type logPruner struct {
	log       attemptPruner
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func (p *logPruner) Sweep() int {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	before := p.now().Add(-p.retention)
	n, err := p.log.Prune(ctx, before)
	if err != nil {
		p.logger.Warn("attempt log prune failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		p.logger.Debug("attempt log pruned", zap.Int64("rows", n), zap.Time("before", before))
	}
	return int(n)
}
