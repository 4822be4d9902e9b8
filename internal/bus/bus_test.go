package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeOnlyReceivesMatchingKind(t *testing.T) {
	b := New()
	ticks := b.Subscribe(EventTickBegin)
	turns := b.Subscribe(EventTurnBegin)

	b.Publish(Event{Kind: EventTickBegin, TurnID: "t1", Tick: 1})

	select {
	case evt := <-ticks:
		assert.Equal(t, "t1", evt.TurnID)
	case <-time.After(time.Second):
		t.Fatal("expected tick_begin event")
	}

	select {
	case <-turns:
		t.Fatal("turn_begin subscriber should not have received a tick_begin event")
	default:
	}
}

func TestNewTapReceivesEveryEventKind(t *testing.T) {
	b := New()
	tap := b.NewTap()

	b.Publish(Event{Kind: EventTurnBegin, TurnID: "t1"})
	b.Publish(Event{Kind: EventDemonFired, TurnID: "t1", Demon: "parse"})

	first := <-tap
	second := <-tap
	assert.Equal(t, EventTurnBegin, first.Kind)
	assert.Equal(t, EventDemonFired, second.Kind)
	assert.Equal(t, "parse", second.Demon)
}

func TestPublishDropsRatherThanBlocksWhenSubscriberFull(t *testing.T) {
	b := New()
	ch := b.Subscribe(EventTickEnd)

	for i := 0; i < subscriberBufSize+10; i++ {
		b.Publish(Event{Kind: EventTickEnd, Tick: i})
	}

	require.Len(t, ch, subscriberBufSize)
}

func TestMultipleSubscribersToSameKindEachGetTheEvent(t *testing.T) {
	b := New()
	a := b.Subscribe(EventSlotWritten)
	c := b.Subscribe(EventSlotWritten)

	b.Publish(Event{Kind: EventSlotWritten, Detail: "x"})

	aEvt := <-a
	cEvt := <-c
	assert.Equal(t, "x", aEvt.Detail)
	assert.Equal(t, "x", cEvt.Detail)
}
