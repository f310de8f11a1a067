package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/d60-Lab/engagement-service/internal/model"
)

func BenchmarkActionLogCreate(b *testing.B) {
	repo := NewActionLogRepository(setupDB(b))
	ctx := context.Background()
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		user := fmt.Sprintf("u%04d", rand.Intn(1000))
		_ = repo.Create(ctx, newLog(user, model.ActionComment, now))
	}
}

func BenchmarkActionLogCountSince(b *testing.B) {
	repo := NewActionLogRepository(setupDB(b))
	ctx := context.Background()
	now := time.Now()

	// 构造：1000 个用户，每人 20 条分布在最近 2 分钟内的评论
	for u := 0; u < 1000; u++ {
		user := fmt.Sprintf("u%04d", u)
		for j := 0; j < 20; j++ {
			_ = repo.Create(ctx, newLog(user, model.ActionComment, now.Add(-time.Duration(j*6)*time.Second)))
		}
	}

	b.ResetTimer()
	b.Run("Window60s", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			user := fmt.Sprintf("u%04d", rand.Intn(1000))
			_, _ = repo.CountSince(ctx, user, model.ActionComment, now.Add(-time.Minute))
		}
	})
	b.Run("Window1h", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			user := fmt.Sprintf("u%04d", rand.Intn(1000))
			_, _ = repo.CountSince(ctx, user, model.ActionComment, now.Add(-time.Hour))
		}
	})
}
