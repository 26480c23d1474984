package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishToTopicSubscribers(t *testing.T) {
	bus := NewBus()

	var statuses []SyncStatus
	bus.Subscribe(TopicSyncStatus, func(e Event) { statuses = append(statuses, e.Status) })

	var toasts int
	bus.Subscribe(TopicToast, func(e Event) { toasts++ })

	bus.Publish(StatusChanged(StatusSyncing))
	bus.Publish(StatusChanged(StatusSynced))
	bus.Publish(StateUpdated())

	assert.Equal(t, []SyncStatus{StatusSyncing, StatusSynced}, statuses)
	assert.Equal(t, 0, toasts)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	sub := bus.Subscribe(TopicStateUpdated, func(e Event) { calls++ })
	bus.Publish(StateUpdated())
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish(StateUpdated())

	assert.Equal(t, 1, calls)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var topics []Topic
	sub := bus.SubscribeAll(func(e Event) { topics = append(topics, e.Topic) })
	defer sub.Unsubscribe()

	bus.Publish(Notify("hi", ToastInfo))
	bus.Publish(StateUpdated())

	assert.Equal(t, []Topic{TopicToast, TopicStateUpdated}, topics)
}

func TestBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TopicStateUpdated, func(e Event) {
		bus.Subscribe(TopicStateUpdated, func(Event) {})
	})

	assert.NotPanics(t, func() { bus.Publish(StateUpdated()) })
}

func TestNotify(t *testing.T) {
	e := Notify("Sync Complete", ToastSuccess)
	assert.Equal(t, TopicToast, e.Topic)
	assert.Equal(t, &Toast{Message: "Sync Complete", Type: ToastSuccess}, e.Toast)
	assert.False(t, e.At.IsZero())
}
