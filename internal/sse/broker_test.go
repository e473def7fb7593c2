package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "routing.changed", Data: map[string]int{"1": 3}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: routing.changed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"1":3`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishTargets_Throttled(t *testing.T) {
	b := NewBroker(300 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishTargets(map[string]string{"navigation": "input_1"})
	b.PublishTargets(map[string]string{"navigation": "input_2"})
	b.PublishTargets(map[string]string{"navigation": "input_3"})

	// First event goes straight through.
	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "input_1") {
			t.Errorf("first flush = %q, want input_1", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for first targets event")
	}

	// The burst coalesces: only the newest payload arrives after the window.
	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "input_3") {
			t.Errorf("second flush = %q, want coalesced input_3", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for coalesced targets event")
	}

	select {
	case msg := <-ch:
		t.Errorf("unexpected third event %q", msg)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestServeHTTP_StreamsEvents(t *testing.T) {
	b := NewBroker(50 * time.Millisecond)
	defer b.Close()

	srv := httptest.NewServer(http.HandlerFunc(b.ServeHTTP))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Wait for the subscription to register before publishing.
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	b.Publish(Event{Type: "scene.activated", Data: map[string]string{"id": "abc"}})

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(buf[:n]), "scene.activated") {
		t.Errorf("stream = %q", buf[:n])
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := NewBroker(time.Second)
	b.Close()
	b.Close()

	if b.ClientCount() != 0 {
		t.Error("closed broker should report zero clients")
	}
	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}
