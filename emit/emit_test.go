package emit

import "testing"

func TestBus_EmitReachesSubscribers(t *testing.T) {
	bus := NewBus()

	var got []Message
	bus.Subscribe(ChannelStatus, func(msg Message) {
		got = append(got, msg)
	})

	bus.Status("Client API: Permission Denied", SeverityError)

	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	msg := got[0]
	if msg.Channel != ChannelStatus {
		t.Errorf("channel = %q, want %q", msg.Channel, ChannelStatus)
	}
	if msg.Text != "Client API: Permission Denied" {
		t.Errorf("text = %q", msg.Text)
	}
	if msg.Severity != SeverityError {
		t.Errorf("severity = %q, want error", msg.Severity)
	}
	if msg.ID == "" {
		t.Error("message should carry an id")
	}
	if msg.At.IsZero() {
		t.Error("message should carry a timestamp")
	}
}

func TestBus_ChannelsAreIsolated(t *testing.T) {
	bus := NewBus()

	statusCount := 0
	bus.Subscribe(ChannelStatus, func(Message) { statusCount++ })

	bus.Emit("other", "hello", SeverityInfo)

	if statusCount != 0 {
		t.Errorf("status subscriber received %d messages from another channel", statusCount)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	unsubscribe := bus.Subscribe(ChannelStatus, func(Message) { count++ })

	bus.Status("one", SeverityInfo)
	unsubscribe()
	bus.Status("two", SeverityInfo)

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestBus_EmitWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus()
	// Must not panic or block.
	bus.Status("nobody listening", SeverityWarning)
}

func TestDefault_Singleton(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same bus")
	}
}
