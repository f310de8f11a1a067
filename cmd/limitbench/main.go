package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/internal/service"
	"github.com/d60-Lab/engagement-service/pkg/cache"
	"github.com/d60-Lab/engagement-service/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

// 对同一用户并发发起 N 次检查，观察放行数是否超过配额
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	N := envInt("N", 1000)
	CONC := envInt("CONC", 16)
	ACTION := model.ActionComment
	if s := os.Getenv("ACTION"); s != "" {
		ACTION = model.ActionKind(s)
	}
	STRICT := os.Getenv("STRICT") == "1"

	policies := service.PolicyTableFromConfig(cfg.RateLimit)
	policy, ok := policies.Lookup(ACTION)
	if !ok {
		panic(fmt.Sprintf("unknown action %q", ACTION))
	}

	var logs repository.ActionLogRepository = repository.NewActionLogRepository(db)
	store := "database"
	if cfg.Redis.Enabled {
		rdb := must(cache.InitRedis(ctx, cfg.Redis))
		defer rdb.Close()
		logs = repository.NewRedisActionLogRepository(rdb)
		store = "redis"
	}
	users := repository.NewUserRepository(db)

	subject := model.User{ID: uuid.NewString(), Username: "bench-" + uuid.NewString()[:8], Email: "bench@example.com"}
	if err := users.Create(ctx, &subject); err != nil {
		panic(err)
	}

	limiter := service.NewRateLimiter(policies, logs, users, service.WithStrict(STRICT))

	var allowed, denied, failed atomic.Int64
	lat := make([]time.Duration, 0, N)
	var mu sync.Mutex
	jobs := make(chan struct{}, N)
	for i := 0; i < N; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]time.Duration, 0, N/CONC+1)
			for range jobs {
				st := time.Now()
				dec, err := limiter.Check(ctx, subject.ID, string(ACTION))
				local = append(local, time.Since(st))
				switch {
				case err == nil && dec.Allowed:
					allowed.Add(1)
				case errors.Is(err, service.ErrRateLimitExceeded):
					denied.Add(1)
				default:
					failed.Add(1)
				}
			}
			mu.Lock()
			lat = append(lat, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	var sum time.Duration
	for _, d := range lat {
		sum += d
	}
	fmt.Printf("N=%d CONC=%d ACTION=%s STORE=%s STRICT=%v\n", N, CONC, ACTION, store, STRICT)
	fmt.Printf("Quota: limit=%d window=%v\n", policy.Limit, policy.Window)
	fmt.Printf("Allowed=%d Denied=%d Failed=%d Overshoot=%d\n", allowed.Load(), denied.Load(), failed.Load(), max(0, allowed.Load()-int64(policy.Limit)))
	fmt.Printf("Check latency: avg=%v p95=%v p99=%v\n", sum/time.Duration(max(1, len(lat))), pct(lat, 0.95), pct(lat, 0.99))
	fmt.Printf("Throughput: %.0f checks/s\n", float64(N)/elapsed.Seconds())
}
