package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/flowsense/internal/advisory"
	"github.com/betbot/flowsense/internal/domain"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_OpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestJournal_SignalRoundTrip(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)

	sigs := []*domain.Signal{
		{ID: "s1", Type: domain.SignalIceberg, Direction: domain.DirectionBuy, Price: 100, Size: 33, OrderCount: 3, Time: base},
		{ID: "s2", Type: domain.SignalSpoof, Direction: domain.DirectionFade, Price: 205, Size: 80, Time: base.Add(time.Second)},
		{ID: "s3", Type: domain.SignalAbsorption, Direction: domain.DirectionSell, Price: 150, Size: 120, Time: base.Add(2 * time.Second)},
	}
	for _, s := range sigs {
		require.NoError(t, j.RecordSignal(ctx, s))
	}

	rows, err := j.RecentSignals(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// 时间倒序
	assert.Equal(t, "s3", rows[0].ID)
	assert.Equal(t, "s2", rows[1].ID)
	assert.Equal(t, "ABSORPTION", rows[0].Type)
	assert.Equal(t, "SELL", rows[0].Direction)
	assert.Equal(t, int64(150), rows[0].Price)
	assert.Equal(t, int64(120), rows[0].Size)
	assert.True(t, rows[0].CreatedAt.Equal(base.Add(2*time.Second)))
}

func TestJournal_DuplicateSignalIDIgnored(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	sig := &domain.Signal{ID: "dup", Type: domain.SignalIceberg, Direction: domain.DirectionBuy, Price: 100, Size: 33, Time: time.Now()}
	require.NoError(t, j.RecordSignal(ctx, sig))
	// 重复写同一 ID 不报错也不新增
	require.NoError(t, j.RecordSignal(ctx, sig))

	rows, err := j.RecentSignals(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestJournal_RecordEvaluationAndAdvisory(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	res := &domain.ConfluenceResult{
		Direction: domain.DirectionBuy,
		Score:     12.5,
		Threshold: 10,
		Decided:   true,
		Price:     100,
		Time:      time.Now(),
	}
	require.NoError(t, j.RecordEvaluation(ctx, res))

	d := &advisory.Decision{Action: "approve", Confidence: 0.8, Reasoning: "order flow supportive", Provider: "quickpath", LatencyMs: 42}
	require.NoError(t, j.RecordAdvisory(ctx, "s1", d))

	// nil 参数是无操作
	require.NoError(t, j.RecordEvaluation(ctx, nil))
	require.NoError(t, j.RecordAdvisory(ctx, "s1", nil))
}

func TestJournal_RecentEvaluations(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)

	// 未达标与达标评估都入库
	require.NoError(t, j.RecordEvaluation(ctx, &domain.ConfluenceResult{
		Direction: domain.DirectionSell, Score: 4.5, Threshold: 10, Decided: false, Price: 100, Time: base,
	}))
	require.NoError(t, j.RecordEvaluation(ctx, &domain.ConfluenceResult{
		Direction: domain.DirectionBuy, Score: 12, Threshold: 10, Decided: true, Price: 101, Time: base.Add(time.Second),
	}))

	rows, err := j.RecentEvaluations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// 插入顺序倒序
	assert.Equal(t, "BUY", rows[0].Direction)
	assert.True(t, rows[0].Decided)
	assert.Equal(t, int64(101), rows[0].Price)
	assert.Equal(t, "SELL", rows[1].Direction)
	assert.False(t, rows[1].Decided)
	assert.InDelta(t, 4.5, rows[1].Score, 1e-9)
	assert.True(t, rows[1].CreatedAt.Equal(base))

	limited, err := j.RecentEvaluations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "BUY", limited[0].Direction)
}

func TestJournal_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordSignal(ctx, &domain.Signal{
		ID: "persist", Type: domain.SignalIceberg, Direction: domain.DirectionBuy, Price: 100, Size: 33, Time: time.Now(),
	}))
	require.NoError(t, j.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	rows, err := j2.RecentSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "persist", rows[0].ID)
}
