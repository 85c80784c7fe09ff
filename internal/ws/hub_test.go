package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, topic string) *Client {
	return &Client{
		hub:   hub,
		topic: topic,
		send:  make(chan []byte, 256),
	}
}

func TestValidTopic(t *testing.T) {
	for _, topic := range []string{TopicKitchen, TopicPOS, TopicTables} {
		if !ValidTopic(topic) {
			t.Errorf("%s should be a valid topic", topic)
		}
	}
	for _, topic := range []string{"", "orders", "KITCHEN", "admin"} {
		if ValidTopic(topic) {
			t.Errorf("%s should not be a valid topic", topic)
		}
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicKitchen)

	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[TopicKitchen] == nil {
		t.Fatal("kitchen room not created")
	}
	if !hub.rooms[TopicKitchen][client] {
		t.Fatal("client not registered in kitchen room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicPOS)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[TopicPOS] != nil {
		t.Fatal("pos room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	kitchenClient := mockClient(hub, TopicKitchen)
	posClient := mockClient(hub, TopicPOS)

	hub.register <- kitchenClient
	hub.register <- posClient
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	hub.Broadcast(TopicKitchen, Event{Type: "order.created", Payload: testPayload})

	select {
	case msg := <-kitchenClient.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.created" {
			t.Errorf("expected type 'order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("kitchen client did not receive message")
	}

	// The pos client is on a different topic and must not receive it.
	select {
	case <-posClient.send:
		t.Fatal("pos client should not have received a kitchen event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, TopicTables)
	client2 := mockClient(hub, TopicTables)
	client3 := mockClient(hub, TopicTables)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(TopicTables, Event{
		Type:    "order.updated",
		Payload: json.RawMessage(`{"status":"ready"}`),
	})

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.updated" {
				t.Errorf("client%d: expected type 'order.updated', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestOrderEventFansOutToAllTopics(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	kitchenClient := mockClient(hub, TopicKitchen)
	posClient := mockClient(hub, TopicPOS)
	tablesClient := mockClient(hub, TopicTables)

	hub.register <- kitchenClient
	hub.register <- posClient
	hub.register <- tablesClient
	time.Sleep(10 * time.Millisecond)

	hub.OrderEvent("order.created", map[string]string{"id": "abc", "status": "pending"})

	for name, client := range map[string]*Client{
		"kitchen": kitchenClient,
		"pos":     posClient,
		"tables":  tablesClient,
	} {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("%s: failed to unmarshal: %v", name, err)
			}
			if received.Type != "order.created" {
				t.Errorf("%s: expected type 'order.created', got '%s'", name, received.Type)
			}
			var payload map[string]string
			if err := json.Unmarshal(received.Payload, &payload); err != nil {
				t.Fatalf("%s: failed to unmarshal payload: %v", name, err)
			}
			if payload["status"] != "pending" {
				t.Errorf("%s: expected status 'pending', got '%s'", name, payload["status"])
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s client did not receive order event", name)
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, TopicKitchen)
	client2 := mockClient(hub, TopicKitchen)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[TopicKitchen]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[TopicKitchen]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[TopicKitchen]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[TopicKitchen]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[TopicKitchen] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToEmptyTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, TopicKitchen)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(TopicTables, Event{
		Type:    "order.created",
		Payload: json.RawMessage(`{"test":"data"}`),
	})

	select {
	case <-client.send:
		t.Fatal("client should not receive message for a different topic")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
