package messaging

import (
	"testing"

	"tilledge/config"
)

func TestConnectionChangeNotifications(t *testing.T) {
	c := NewClient(&config.SyncConfig{Backend: "http"})

	var transitions []bool
	c.OnConnectionChange(func(connected bool) {
		transitions = append(transitions, connected)
	})

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("client should report connected after Connect")
	}

	c.Close()
	if c.IsConnected() {
		t.Error("client should report disconnected after Close")
	}

	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Errorf("transitions = %v, want [true false]", transitions)
	}
}

func TestCloseWithoutConnectDoesNotNotify(t *testing.T) {
	c := NewClient(&config.SyncConfig{Backend: "http"})

	notified := false
	c.OnConnectionChange(func(bool) { notified = true })

	c.Close()
	if notified {
		t.Error("closing a never-connected client should not fire the callback")
	}
}
