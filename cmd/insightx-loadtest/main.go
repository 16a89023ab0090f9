// Command insightx-loadtest measures Validate and Refresh throughput of an
// Authority against miniredis or a real Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// subjects answers FindByID for every seeded principal. Passwords are never
// checked since the load test issues tokens directly.
type subjects struct {
	byID map[string]*insightx.Principal
}

func (s *subjects) FindByID(_ context.Context, id string) (*insightx.Principal, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *subjects) FindByLogin(context.Context, string) (*insightx.Principal, error) {
	return nil, nil
}

func (s *subjects) VerifyPassword(context.Context, *insightx.Principal, string) (bool, error) {
	return false, nil
}

func main() {
	var (
		count       = flag.Int("subjects", 10000, "number of principals to issue tokens for")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "ixload", "redis key prefix")
	)
	flag.Parse()

	if *count <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "subjects, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	users := &subjects{byID: make(map[string]*insightx.Principal, *count)}
	for i := 0; i < *count; i++ {
		id := fmt.Sprintf("user-%d", i)
		users.byID[id] = &insightx.Principal{
			ID:            id,
			Username:      id,
			Email:         id + "@load.test",
			Role:          insightx.RoleUser,
			Active:        true,
			EmailVerified: true,
		}
	}

	cfg := insightx.DefaultConfig()
	cfg.JWT.Secret = []byte("insightx-loadtest-secret-0123456789")
	cfg.Store.RedisPrefix = *prefix
	cfg.Metrics.EnableLatencyHistograms = true

	auth, err := insightx.New().WithConfig(cfg).WithRedis(client).WithUserStore(users).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "authority build failed: %v\n", err)
		os.Exit(1)
	}
	defer auth.Close()

	pairs := make([]insightx.TokenPair, 0, *count)
	fmt.Printf("issuing %d token pairs...\n", *count)
	startSeed := time.Now()
	for i := 0; i < *count; i++ {
		pair, err := auth.Generate(ctx, users.byID[fmt.Sprintf("user-%d", i)])
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate failed: %v\n", err)
			os.Exit(1)
		}
		pairs = append(pairs, pair)
	}
	fmt.Printf("issued in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		_, err := auth.Validate(ctx, pairs[r.Intn(len(pairs))].AccessToken)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		_, err := auth.Refresh(ctx, pairs[r.Intn(len(pairs))].RefreshToken)
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)

	snap := auth.MetricsSnapshot()
	fmt.Printf("fail-open reads: %d\n", snap.Counters[insightx.MetricStoreFailOpen])
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
