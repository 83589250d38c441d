package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goShield "github.com/MrEthical07/goShield"
	"github.com/MrEthical07/goShield/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (touch + authorize)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "redis key prefix")
		cached      = flag.Bool("cache", true, "cache realm decisions in redis")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	sm, err := buildManager(client, *prefix, *cached)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer sm.Close()

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range ids {
		h, err := sm.StartSession(ctx, fmt.Sprintf("10.0.%d.%d", (i/250)%250, i%250))
		if err != nil {
			fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
			os.Exit(1)
		}
		ids[i] = h.ID()
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	touchStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		return sm.Sessions().Touch(ctx, ids[r.Intn(len(ids))])
	})

	principals := []goShield.PrincipalCollection{
		goShield.NewPrincipals("reader"),
		goShield.NewPrincipals("editor"),
	}
	perms := []string{"docs:read:handbook", "docs:write:handbook", "docs:delete"}
	authorizeStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		_, err := sm.IsPermitted(ctx, principals[r.Intn(len(principals))], perms[r.Intn(len(perms))])
		return err
	})

	fmt.Println("---- results ----")
	printStats("touch", touchStats)
	printStats("authorize", authorizeStats)

	snap := sm.MetricsSnapshot()
	fmt.Printf("cache: hit=%d miss=%d error=%d\n",
		snap.Counters[goShield.MetricCacheHit],
		snap.Counters[goShield.MetricCacheMiss],
		snap.Counters[goShield.MetricCacheError],
	)
}

func buildManager(client redis.UniversalClient, prefix string, cached bool) (*goShield.SecurityManager, error) {
	roles := permission.NewRoleManager(nil)
	if err := roles.RegisterRole("reader", []string{"docs:read"}); err != nil {
		return nil, err
	}
	if err := roles.RegisterRole("editor", []string{"docs:read", "docs:write"}); err != nil {
		return nil, err
	}
	realm := goShield.NewSimpleRealm("loadtest", roles)
	if err := realm.AddAccount("reader", []byte("reader"), "reader"); err != nil {
		return nil, err
	}
	if err := realm.AddAccount("editor", []byte("editor"), "editor"); err != nil {
		return nil, err
	}

	cfg := goShield.DefaultConfig()
	cfg.Session.RedisPrefix = prefix
	cfg.Session.ReaperEnabled = false
	cfg.Cache.Enabled = cached
	cfg.Cache.Prefix = prefix
	cfg.Metrics.Enabled = true

	return goShield.New().
		WithConfig(cfg).
		WithRedis(client).
		WithRealm(realm).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
}

func runPhase(ops, concurrency int, seed int64, op func(*rand.Rand) error) phaseStats {
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
