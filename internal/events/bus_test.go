package events

import (
	"testing"
	"time"

	"github.com/aristath/testscriptgen/internal/api"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	return nil
}

func expectNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if ok {
			t.Errorf("unexpected event %s", ev.EventType())
		}
	case <-time.After(10 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(TopicTask, 10)
	bus.Publish(TaskStatusEvent{ID: 7, Status: api.StatusRunning, Timestamp: time.Now()})

	ev := receive(t, sub)
	if ev.TaskID() != 7 {
		t.Errorf("TaskID() = %d, want 7", ev.TaskID())
	}
	if ev.EventType() != EventTypeTaskStatus {
		t.Errorf("EventType() = %s", ev.EventType())
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	s1 := bus.Subscribe(TopicTask, 10)
	s2 := bus.Subscribe(TopicTask, 10)

	bus.Publish(BannerClearedEvent{ID: 2})

	for i, sub := range []*Subscription{s1, s2} {
		if ev := receive(t, sub); ev.TaskID() != 2 {
			t.Errorf("subscriber %d: TaskID() = %d", i+1, ev.TaskID())
		}
	}
}

func TestTopicIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	taskSub := bus.Subscribe(TopicTask, 10)
	listSub := bus.Subscribe(TopicList, 10)

	bus.Publish(TaskLoadedEvent{ID: 1, Task: &api.Task{ID: 1}})
	bus.Publish(TaskListChangedEvent{Tasks: []api.TaskSummary{{ID: 1}}})

	if ev := receive(t, taskSub); ev.EventType() != EventTypeTaskLoaded {
		t.Errorf("task subscription got %s", ev.EventType())
	}
	if ev := receive(t, listSub); ev.EventType() != EventTypeTaskListChanged {
		t.Errorf("list subscription got %s", ev.EventType())
	}
	expectNothing(t, taskSub)
	expectNothing(t, listSub)
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.SubscribeAll(10)
	bus.Publish(AuthChangedEvent{User: &api.User{Username: "alice"}})
	bus.Publish(SubmitFailedEvent{ID: 3, Message: "boom"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[receive(t, all).EventType()] = true
	}
	if !seen[EventTypeAuthChanged] || !seen[EventTypeSubmitFailed] {
		t.Errorf("SubscribeAll saw %v", seen)
	}
	expectNothing(t, all)
}

func TestNonBlockingPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(TopicTask, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TaskStatusEvent{ID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked on a full subscriber")
	}

	if ev := receive(t, sub); ev.TaskID() != 0 {
		t.Errorf("buffered event TaskID() = %d, want first published", ev.TaskID())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(TopicTask, 10)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}

	bus.Publish(TaskStatusEvent{ID: 1})
}

func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicTask, 10)

	bus.Close()
	bus.Close()

	received := 0
	for range sub.C {
		received++
	}
	if received != 0 {
		t.Errorf("received %d events after close", received)
	}

	// Neither publishing nor unsubscribing after close may panic.
	bus.Publish(TaskStatusEvent{ID: 1})
	bus.Unsubscribe(sub)

	late := bus.Subscribe(TopicTask, 1)
	if _, ok := <-late.C; ok {
		t.Error("subscription on a closed bus should be closed")
	}
}
