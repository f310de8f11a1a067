package service

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
)

func TestPurger_PurgeOnceKeepsLongWindows(t *testing.T) {
	db := setupDB(t)
	clock := newFakeClock()
	logs := repository.NewActionLogRepository(db)
	ctx := context.Background()

	add := func(kind model.ActionKind, age time.Duration) {
		require.NoError(t, logs.Create(ctx, &model.ActionLog{
			ID: ksuid.New().String(), UserID: "u1", Action: kind, CreatedAt: clock.Now().Add(-age),
		}))
	}
	add(model.ActionComment, 25*time.Hour)
	add(model.ActionComment, time.Hour)
	add(model.ActionPin, 48*time.Hour)
	add(model.ActionPin, 31*24*time.Hour)

	p := NewPurger(logs, DefaultPolicyTable(), 24*time.Hour, time.Hour, time.Minute, WithClock(clock.Now))
	n, err := p.PurgeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, p.Runs())

	pins, err := logs.CountSince(ctx, "u1", model.ActionPin, clock.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pins)

	assert.Equal(t, 30*24*time.Hour, p.KeyTTL(model.ActionPin))
	assert.Equal(t, 24*time.Hour, p.KeyTTL(model.ActionComment))
}

func TestPurger_MinGap(t *testing.T) {
	clock := newFakeClock()
	p := NewPurger(repository.NewActionLogRepository(setupDB(t)), DefaultPolicyTable(), 24*time.Hour, time.Hour, time.Minute, WithClock(clock.Now))

	assert.True(t, p.due())
	_, err := p.PurgeOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, p.due())

	clock.Advance(time.Minute)
	assert.True(t, p.due())
}

func TestPurger_StartHandlesTrigger(t *testing.T) {
	p := NewPurger(repository.NewActionLogRepository(setupDB(t)), DefaultPolicyTable(), 24*time.Hour, time.Hour, 0)
	stop := p.Start()

	p.Trigger()
	require.Eventually(t, func() bool { return p.Runs() >= 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
}
