package bus_test

import (
	"testing"

	"github.com/aretw0/rewind/pkg/bus"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	b := bus.New()
	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		b.Subscribe(bus.SubscriberFunc(func(domain.Notification) { got = append(got, name) }))
	}

	b.Publish(domain.NewStatusNotification("d", domain.StatusRun))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := bus.New()
	var a, c int
	b.Subscribe(bus.SubscriberFunc(func(domain.Notification) { a++ }))
	unsub := b.Subscribe(bus.SubscriberFunc(func(domain.Notification) { t.Fatal("unsubscribed") }))
	b.Subscribe(bus.SubscriberFunc(func(domain.Notification) { c++ }))

	unsub()
	unsub()
	require.Equal(t, 2, b.Len())

	b.Publish(domain.NewStatusNotification("d", domain.StatusStop))
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, c)
}

func TestChannel_DropsWhenFull(t *testing.T) {
	b := bus.New()
	ch := bus.NewChannel(1, nil)
	unsub := b.Subscribe(ch)
	defer unsub()

	b.Publish(domain.NewConsoleNotification("d", "first", domain.LogInfo))
	b.Publish(domain.NewConsoleNotification("d", "second", domain.LogInfo))

	n := <-ch.C
	assert.Equal(t, "first", n.Console.Message)

	ch.Close()
	b.Publish(domain.NewConsoleNotification("d", "late", domain.LogInfo))
	_, open := <-ch.C
	assert.False(t, open)
}
