package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthsync/internal/bus"
	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/stream"
)

func TestIntervalStatsSummaries(t *testing.T) {
	s := NewIntervalStats(4)

	// 30 fps color, 60 fps depth.
	for i := int64(0); i < 10; i++ {
		s.Observe(stream.TopicColor, i*33_000_000)
		s.Observe(stream.TopicDepth, i*16_000_000)
	}
	s.Observe(stream.TopicFisheye, 5)

	sums := s.Summaries()
	require.Len(t, sums, 3)
	assert.Equal(t, stream.TopicColor, sums[0].Topic)

	color := sums[0]
	assert.Equal(t, uint64(10), color.Samples)
	assert.Equal(t, 4, color.Window)
	assert.InDelta(t, 33.0, color.MeanMs, 1e-9)
	assert.InDelta(t, 0.0, color.StdDevMs, 1e-9)
	assert.InDelta(t, 33.0, color.MinMs, 1e-9)
	assert.InDelta(t, 33.0, color.MaxMs, 1e-9)
	assert.InDelta(t, 1000.0/33.0, color.RateHz, 1e-9)

	fisheye := sums[2]
	assert.Equal(t, stream.TopicFisheye, fisheye.Topic)
	assert.Equal(t, uint64(1), fisheye.Samples)
	assert.Zero(t, fisheye.Window)
	assert.Zero(t, fisheye.RateHz)
}

func TestIntervalStatsJitter(t *testing.T) {
	s := NewIntervalStats(0)
	stamps := []int64{0, 10e6, 30e6, 40e6, 60e6}
	for _, ts := range stamps {
		s.Observe("x", ts)
	}
	sum := s.Summaries()[0]
	assert.InDelta(t, 15.0, sum.MeanMs, 1e-9)
	assert.InDelta(t, 10.0, sum.MinMs, 1e-9)
	assert.InDelta(t, 20.0, sum.MaxMs, 1e-9)
	assert.InDelta(t, 20.0, sum.P95Ms, 1e-9)
	assert.Greater(t, sum.StdDevMs, 0.0)
}

func TestIntervalStatsBackwardsStampRestartsChain(t *testing.T) {
	s := NewIntervalStats(0)
	s.Observe("x", 100)
	s.Observe("x", 50)
	s.Observe("x", 60)
	sum := s.Summaries()[0]
	assert.Equal(t, 1, sum.Window)
	assert.InDelta(t, 10e-6, sum.MeanMs, 1e-12)
}

func TestIntervalStatsRunFromBus(t *testing.T) {
	b := bus.New(16)
	s := NewIntervalStats(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, b)
		close(done)
	}()
	require.Eventually(t, func() bool { return b.Stats().Subscribers == 1 }, time.Second, 5*time.Millisecond)

	for i := int64(0); i < 3; i++ {
		require.NoError(t, b.Publish(bus.Message{
			Topic: stream.TopicImu,
			Kind:  stream.Motion,
			Stamp: clocksync.HostTimestamp(5_000_000 * i),
		}))
	}
	require.Eventually(t, func() bool {
		sums := s.Summaries()
		return len(sums) == 1 && sums[0].Samples == 3
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 5.0, s.Summaries()[0].MeanMs, 1e-9)

	require.NoError(t, b.Close())
	<-done
}
