package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	ev, err := NewEnvelope(EventSnapshotPublished, "node-a", map[string]int{"entries": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "node-a", ev.Source)
	assert.Equal(t, 1, ev.Version)

	var payload map[string]int
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, 3, payload["entries"])

	empty, err := NewEnvelope(EventReloadRequested, "cli", nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Payload)
	assert.NoError(t, empty.Decode(&payload))

	_, err = NewEnvelope(EventSnapshotPublished, "x", func() {})
	assert.Error(t, err)
}

func TestMemoryBusDeliversByFilter(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	reloads := make(chan *Envelope, 4)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventReloadRequested}}, func(ctx context.Context, ev *Envelope) {
		reloads <- ev
	})
	require.NoError(t, err)

	published, _ := NewEnvelope(EventSnapshotPublished, "node", nil)
	reload, _ := NewEnvelope(EventReloadRequested, "cli", nil)
	require.NoError(t, bus.Publish(context.Background(), published))
	require.NoError(t, bus.Publish(context.Background(), reload))

	select {
	case ev := <-reloads:
		assert.Equal(t, reload.ID, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено")
	}

	assert.Eventually(t, func() bool {
		return bus.Metrics().Published == 2 && bus.Metrics().Consumed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	got := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		got <- struct{}{}
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	ev, _ := NewEnvelope(EventReloadRequested, "cli", nil)
	require.NoError(t, bus.Publish(context.Background(), ev))

	select {
	case <-got:
		t.Fatal("отписанный обработчик получил событие")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	ev, _ := NewEnvelope(EventReloadRequested, "cli", nil)
	assert.ErrorIs(t, bus.Publish(context.Background(), ev), ErrClosed)
}

func TestMatchFilter(t *testing.T) {
	ev := &Envelope{EventType: EventReloadRequested, Source: "cli"}
	assert.True(t, matchFilter(ev, Filter{}))
	assert.True(t, matchFilter(ev, Filter{Sources: []string{"cli", "api"}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{EventSnapshotPublished}}))
	assert.Equal(t, "config.ReloadRequested", Subject(EventReloadRequested))
}

type staticBus struct {
	EventBus
	stats Stats
}

func (b *staticBus) Metrics() Stats { return b.stats }

func TestMetricsExporterCollectsDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := &staticBus{stats: Stats{Published: 3, Consumed: 2, InFlight: 1}}
	me := NewMetricsExporter(bus, reg)

	prev := me.collect(Stats{})
	assert.Equal(t, 3.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 1.0, testutil.ToFloat64(me.inflight))

	bus.stats = Stats{Published: 5, Consumed: 2, Dropped: 1}
	me.collect(prev)
	assert.Equal(t, 5.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 2.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(me.dropped))
}
