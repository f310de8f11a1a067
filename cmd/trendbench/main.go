package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/internal/service"
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

// 造 POSTS 条近 7 天内的内容，重复 RUNS 次热度计算并统计耗时
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	POSTS := envInt("POSTS", 5000)
	RUNS := envInt("RUNS", 5)
	CONC := envInt("CONC", cfg.Trending.Concurrency)

	// 清空以便结果可复现（仅限本地压测库）
	_ = db.Exec("DELETE FROM posts").Error

	now := time.Now()
	rng := rand.New(rand.NewSource(1))
	rows := make([]model.Post, POSTS)
	for i := range rows {
		rows[i] = model.Post{
			ID:            uuid.NewString(),
			AuthorID:      "bench",
			Title:         fmt.Sprintf("bench post %d", i),
			LikesCount:    rng.Int63n(500),
			CommentsCount: rng.Int63n(100),
			SharesCount:   rng.Int63n(50),
			ViewsCount:    rng.Int63n(10000),
			CreatedAt:     now.Add(-time.Duration(rng.Int63n(int64(cfg.Trending.Lookback)))),
		}
	}
	seedStart := time.Now()
	if err := db.CreateInBatches(&rows, 500).Error; err != nil {
		panic(err)
	}
	seedDur := time.Since(seedStart)

	params := service.TrendingParamsFromConfig(cfg.Trending)
	params.Concurrency = CONC
	scorer := service.NewTrendingScorer(repository.NewPostRepository(db), params)

	runs := make([]time.Duration, 0, RUNS)
	var last *service.TrendingResult
	for i := 0; i < RUNS; i++ {
		st := time.Now()
		res, err := scorer.Run(ctx)
		if err != nil {
			fmt.Printf("run %d: %v\n", i, err)
		}
		runs = append(runs, time.Since(st))
		last = res
	}

	var sum time.Duration
	for _, d := range runs {
		sum += d
	}
	fmt.Printf("POSTS=%d RUNS=%d CONC=%d\n", POSTS, RUNS, CONC)
	fmt.Printf("Seed: %v\n", seedDur)
	fmt.Printf("Scoring run: avg=%v p95=%v max=%v\n", sum/time.Duration(len(runs)), pct(runs, 0.95), pct(runs, 1))
	if last != nil {
		fmt.Printf("Last run: total=%d processed=%d failed=%d trending=%d\n", last.Total, last.Processed, last.Failed, last.TrendingCount)
	}

	st := time.Now()
	top := must(repository.NewPostRepository(db).ListTrending(ctx, params.TopN))
	fmt.Printf("Trending read (limit=%d): %v, rows=%d\n", params.TopN, time.Since(st), len(top))
}
