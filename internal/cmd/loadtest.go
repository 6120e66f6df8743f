package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	goGuard "github.com/MrEthical07/goGuard"
)

var (
	loadKeys        int
	loadConcurrency int
	loadOps         int
	loadBurst       int
	loadRedis       string
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Measure check throughput and verify no attempt slips past a limit",
	Long: `Run two phases against an in-process engine:

  burst   many goroutines hit one account at once; exactly max_attempts
          must be allowed
  spread  random attempts across many accounts; reports latency percentiles`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadKeys <= 0 || loadConcurrency <= 0 || loadOps <= 0 || loadBurst <= 0 {
			return fmt.Errorf("keys, concurrency, ops and burst must be > 0")
		}

		cfg := goGuard.DefaultConfig()
		cfg.Audit.Enabled = false
		cfg.Metrics.EnableLatencyHistograms = true
		if loadRedis != "" {
			cfg.Store.Backend = goGuard.StoreRedis
		}

		engine, res, err := buildLoadEngine(cmd.Context(), cfg, loadRedis)
		if err != nil {
			return err
		}
		defer res.Close()
		defer engine.Close()

		out := cmd.OutOrStdout()
		policy, _ := cfg.Policies.Get(goGuard.DimensionAccount, goGuard.ActionLogin)

		burst, err := runBurstPhase(cmd.Context(), engine, loadBurst)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "burst: attempts=%d allowed=%d limit=%d\n", loadBurst, burst, policy.MaxAttempts)
		if want := min(loadBurst, policy.MaxAttempts); burst != want {
			return fmt.Errorf("limit bypassed: %d allowed, want %d", burst, want)
		}

		spread, err := runSpreadPhase(cmd.Context(), engine, loadKeys, loadOps, loadConcurrency)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "---- results ----")
		printStats(cmd, "spread", spread)
		return nil
	},
}

// buildLoadEngine builds a quiet engine on memory, or on Redis when
// redisAddr is set.
func buildLoadEngine(ctx context.Context, cfg goGuard.Config, redisAddr string) (*goGuard.Engine, *backends, error) {
	logger := zap.NewNop()
	b := &backends{}
	builder := goGuard.New().WithConfig(cfg).WithLogger(logger)
	if redisAddr != "" {
		client, err := b.openRedis(ctx, redisAddr, logger)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		builder.WithRedis(client)
	}
	engine, err := builder.Build()
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return engine, b, nil
}

// runBurstPhase fires n concurrent attempts at one account and returns how
// many were allowed.
func runBurstPhase(ctx context.Context, engine *goGuard.Engine, n int) (int, error) {
	var (
		allowed int64
		start   = make(chan struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			<-start
			res, err := engine.CheckAndRecord(gctx, goGuard.DimensionAccount, goGuard.ActionLogin, "burst@example.com", nil)
			if err != nil {
				return err
			}
			if res.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(allowed), nil
}

func runSpreadPhase(ctx context.Context, engine *goGuard.Engine, keys, ops, concurrency int) (phaseStats, error) {
	var (
		cursor    int64
		failures  int64
		denied    int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		worker := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return nil
				}
				id := goGuard.Identity{
					IP:      fmt.Sprintf("10.%d.%d.%d", r.Intn(256), r.Intn(256), r.Intn(256)),
					Account: fmt.Sprintf("user-%d@example.com", r.Intn(keys)),
				}
				t0 := time.Now()
				res := engine.CheckAndRecordAll(gctx, goGuard.ActionLogin, id, nil)
				d := time.Since(t0)
				switch {
				case res.Err != nil:
					atomic.AddInt64(&failures, 1)
				case !res.Allowed:
					atomic.AddInt64(&denied, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	stats := computeStats(time.Since(start), latencies, failures)
	stats.denied = denied
	return stats, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	denied   int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(cmd *cobra.Command, name string, s phaseStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ops=%d denied=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.denied,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func init() {
	loadtestCmd.Flags().IntVar(&loadKeys, "keys", 100000, "number of distinct accounts in the spread phase")
	loadtestCmd.Flags().IntVar(&loadConcurrency, "concurrency", 256, "number of concurrent workers")
	loadtestCmd.Flags().IntVar(&loadOps, "ops", 200000, "attempts in the spread phase")
	loadtestCmd.Flags().IntVar(&loadBurst, "burst", 50, "concurrent attempts against one account in the burst phase")
	loadtestCmd.Flags().StringVar(&loadRedis, "redis", "", `redis address, or "mini" for embedded miniredis (default in-memory store)`)
}
