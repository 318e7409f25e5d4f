package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// receiveWithTimeout reads one queued message from a client or fails.
func receiveWithTimeout(t *testing.T, client *Client, timeout time.Duration) []byte {
	t.Helper()
	select {
	case data := <-client.SendChan():
		return data
	case <-time.After(timeout):
		t.Fatal("timed out waiting for client message")
		return nil
	}
}

func TestHubClientManagement(t *testing.T) {
	hub := NewHub("sess-1")
	defer hub.Close()

	client1 := NewClient(hub, nil, "sess-1")
	client2 := NewClient(hub, nil, "sess-1")

	hub.Register(client1)
	hub.Register(client2)

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}

	testData := []byte("telsh> hello\r\n")
	hub.Broadcast(testData)

	received1 := receiveWithTimeout(t, client1, 100*time.Millisecond)
	received2 := receiveWithTimeout(t, client2, 100*time.Millisecond)

	if string(received1) != string(testData) {
		t.Errorf("client1 received wrong data: %s", received1)
	}
	if string(received2) != string(testData) {
		t.Errorf("client2 received wrong data: %s", received2)
	}

	hub.Unregister(client1)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after unregister, got %d", hub.ClientCount())
	}
	if !client1.IsClosed() {
		t.Error("unregistered client should be closed")
	}
}

func TestHubOnCloseFiresWhenLastObserverLeaves(t *testing.T) {
	hub := NewHub("sess-2")
	defer hub.Close()

	closed := make(chan struct{}, 1)
	hub.SetOnClose(func() { closed <- struct{}{} })

	client1 := NewClient(hub, nil, "sess-2")
	client2 := NewClient(hub, nil, "sess-2")
	hub.Register(client1)
	hub.Register(client2)

	hub.Unregister(client1)
	select {
	case <-closed:
		t.Fatal("onClose fired while an observer remained")
	default:
	}

	hub.Unregister(client2)
	select {
	case <-closed:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("onClose did not fire after last observer left")
	}
}

func TestBroadcastMessageSerialization(t *testing.T) {
	hub := NewHub("sess-3")
	defer hub.Close()

	client := NewClient(hub, nil, "sess-3")
	hub.Register(client)

	msg := &Message{Type: MessageTypeOutput, Data: "uptime: 42s\r\n"}
	if err := hub.BroadcastMessage(msg); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}

	data := receiveWithTimeout(t, client, 100*time.Millisecond)
	var parsed Message
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal broadcast: %v", err)
	}
	if parsed.Type != MessageTypeOutput || parsed.Data != msg.Data {
		t.Errorf("broadcast mismatch: got type=%s data=%q", parsed.Type, parsed.Data)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	hub := NewHub("sess-4")
	defer hub.Close()

	client := NewClient(hub, nil, "sess-4")
	client.Close()

	// Sending to a closed client must not panic.
	client.Send([]byte("late data"))

	if !client.IsClosed() {
		t.Error("client should report closed")
	}
}

func TestClientDroppedWhenBufferFull(t *testing.T) {
	hub := NewHub("sess-5")
	defer hub.Close()

	client := NewClient(hub, nil, "sess-5")
	hub.Register(client)

	// Nothing drains the channel, so overflowing it closes the client.
	for i := 0; i < 300; i++ {
		client.Send([]byte("burst"))
	}

	if !client.IsClosed() {
		t.Error("slow client should be closed once its buffer fills")
	}
}

func TestHubManager(t *testing.T) {
	mgr := NewHubManager()
	defer mgr.Close()

	hub1 := mgr.GetOrCreate("a")
	hub2 := mgr.GetOrCreate("a")
	if hub1 != hub2 {
		t.Error("GetOrCreate should return the same hub for the same session")
	}

	if mgr.Get("missing") != nil {
		t.Error("Get for unknown session should return nil")
	}

	client := NewClient(hub1, nil, "a")
	hub1.Register(client)

	mgr.Remove("a")
	if mgr.Get("a") != nil {
		t.Error("hub should be gone after Remove")
	}
	if !client.IsClosed() {
		t.Error("Remove should close the hub's clients")
	}
}
