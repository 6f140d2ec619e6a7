package tools

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookNotifier_EmptyURLIsNoOp(t *testing.T) {
	n := NewWebhookNotifier("", nil)
	n.Notify("calculator", "1+1", "2", 1.2) // must not panic or block
}

func TestWebhookNotifier_SendsHTTP(t *testing.T) {
	received := make(chan notifyPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notifyPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, nil)
	n.Notify("calculator", "2+2", "4", 3.45)

	select {
	case p := <-received:
		if p.Tool != "calculator" || p.Output != "4" || p.OutputLen != 1 {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}
}

func TestWebhookNotifier_SendsTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
	}()

	n := NewWebhookNotifier("tcp://"+ln.Addr().String(), nil)
	n.Notify("dice", "d20", "12", 0.5)

	select {
	case line := <-received:
		var p notifyPayload
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			t.Fatalf("unmarshal: %v, line=%q", err, line)
		}
		if p.Tool != "dice" {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TCP delivery")
	}
}
