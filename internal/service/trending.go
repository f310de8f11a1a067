package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

// EngagementCounts 参与评分的原始计数
type EngagementCounts struct {
	Likes    int64
	Comments int64
	Shares   int64
	Views    int64
}

// TrendingParams 评分参数
type TrendingParams struct {
	Lookback      time.Duration
	TopN          int
	LikeWeight    float64
	CommentWeight float64
	ShareWeight   float64
	ViewWeight    float64
	DecayExponent float64
	DecayOffset   float64
	Concurrency   int
}

func DefaultTrendingParams() TrendingParams {
	return TrendingParams{
		Lookback:      7 * 24 * time.Hour,
		TopN:          10,
		LikeWeight:    1.0,
		CommentWeight: 2.0,
		ShareWeight:   3.0,
		ViewWeight:    0.1,
		DecayExponent: -1.5,
		DecayOffset:   2,
		Concurrency:   8,
	}
}

func TrendingParamsFromConfig(cfg config.TrendingConfig) TrendingParams {
	return TrendingParams{
		Lookback:      cfg.Lookback,
		TopN:          cfg.TopN,
		LikeWeight:    cfg.LikeWeight,
		CommentWeight: cfg.CommentWeight,
		ShareWeight:   cfg.ShareWeight,
		ViewWeight:    cfg.ViewWeight,
		DecayExponent: cfg.DecayExponent,
		DecayOffset:   cfg.DecayOffset,
		Concurrency:   cfg.Concurrency,
	}
}

// Score (ageHours+offset)^exponent * 加权计数；未来时间按 age=0 处理
func (p TrendingParams) Score(c EngagementCounts, createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	decay := math.Pow(ageHours+p.DecayOffset, p.DecayExponent)
	raw := float64(c.Likes)*p.LikeWeight +
		float64(c.Comments)*p.CommentWeight +
		float64(c.Shares)*p.ShareWeight +
		float64(c.Views)*p.ViewWeight
	return raw * decay
}

func countsOf(p *model.Post) EngagementCounts {
	return EngagementCounts{Likes: p.LikesCount, Comments: p.CommentsCount, Shares: p.SharesCount, Views: p.ViewsCount}
}

// TrendingResult 一次重算的汇总
type TrendingResult struct {
	Total         int `json:"total"`
	Processed     int `json:"total_processed"`
	Failed        int `json:"failed"`
	TrendingCount int `json:"trending_count"`
}

// TrendingScorer 重算近期帖子的热度分并标记前 N 个为热门
type TrendingScorer interface {
	// Run 拉取候选失败时不写任何数据；单条写入失败时继续，并返回 *PartialBatchError
	Run(ctx context.Context) (*TrendingResult, error)
	Params() TrendingParams
}

type trendingScorer struct {
	posts  repository.PostRepository
	params TrendingParams
	now    func() time.Time
}

func NewTrendingScorer(posts repository.PostRepository, params TrendingParams, opts ...Option) TrendingScorer {
	o := buildOptions(opts)
	if params.Concurrency <= 0 {
		params.Concurrency = 1
	}
	return &trendingScorer{posts: posts, params: params, now: o.now}
}

func (s *trendingScorer) Params() TrendingParams { return s.params }

type scoredPost struct {
	post     *model.Post
	score    float64
	trending bool
}

func (s *trendingScorer) Run(ctx context.Context) (*TrendingResult, error) {
	ctx, span := tracer.Start(ctx, "TrendingScorer.Run")
	defer span.End()

	now := s.now()
	candidates, err := s.posts.ListScoringCandidates(ctx, now.Add(-s.params.Lookback))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch candidates")
		return nil, fmt.Errorf("fetch trending candidates: %w: %w", ErrStorageUnavailable, err)
	}
	if len(candidates) == 0 {
		return &TrendingResult{}, nil
	}

	scored := make([]scoredPost, len(candidates))
	for i, p := range candidates {
		scored[i] = scoredPost{post: p, score: s.params.Score(countsOf(p), p.CreatedAt, now)}
	}
	// 同分保持拉取顺序
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	trendingCount := 0
	for i := range scored {
		if i < s.params.TopN {
			scored[i].trending = true
			trendingCount++
		}
	}

	var (
		processed atomic.Int64
		failed    atomic.Int64
		firstErr  error
		errOnce   sync.Once
	)
	p := pool.New().WithMaxGoroutines(s.params.Concurrency)
	for _, item := range scored {
		p.Go(func() {
			if err := s.posts.UpdateScore(ctx, item.post.ID, item.score, item.trending); err != nil {
				failed.Add(1)
				errOnce.Do(func() { firstErr = err })
				logger.Warn("update trending score failed", zap.String("post", item.post.ID), zap.Error(err))
				return
			}
			processed.Add(1)
		})
	}
	p.Wait()

	res := &TrendingResult{
		Total:         len(scored),
		Processed:     int(processed.Load()),
		Failed:        int(failed.Load()),
		TrendingCount: trendingCount,
	}
	span.SetAttributes(
		attribute.Int("trending.total", res.Total),
		attribute.Int("trending.failed", res.Failed),
	)
	if res.Failed > 0 {
		span.SetStatus(codes.Error, "partial batch")
		logger.Error("trending run partially failed",
			zap.Int("processed", res.Processed),
			zap.Int("failed", res.Failed),
			zap.Int("total", res.Total))
		return res, &PartialBatchError{Processed: res.Processed, Failed: res.Failed, Total: res.Total, Err: firstErr}
	}
	return res, nil
}
