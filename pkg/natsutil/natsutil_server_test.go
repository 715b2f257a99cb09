package natsutil

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func runServer(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestPublisherRoundTrip(t *testing.T) {
	nc := runServer(t)

	ch := make(chan testMsg, 1)
	sub, err := Subscribe(nc, "test.events", func(_ context.Context, m testMsg) {
		ch <- m
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	pub := NewPublisher[testMsg](nc, "test.events")
	if pub.Subject() != "test.events" {
		t.Fatalf("unexpected subject %q", pub.Subject())
	}
	if err := pub.Publish(context.Background(), testMsg{Name: "price", Value: 7}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Name != "price" || got.Value != 7 {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscribeSkipsMalformed(t *testing.T) {
	nc := runServer(t)

	ch := make(chan testMsg, 2)
	sub, err := Subscribe(nc, "test.malformed", func(_ context.Context, m testMsg) {
		ch <- m
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := nc.Publish("test.malformed", []byte("{invalid json")); err != nil {
		t.Fatal(err)
	}
	if err := Publish(context.Background(), nc, "test.malformed", testMsg{Name: "ok"}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ch:
		if got.Name != "ok" {
			t.Fatalf("malformed message reached handler: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishInjectsTraceHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	nc := runServer(t)
	sub, err := nc.SubscribeSync("test.trace")
	if err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	// A remote span context in ctx is enough for the propagator to write traceparent.
	carrier := propagation.MapCarrier{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	ctx := propagation.TraceContext{}.Extract(context.Background(), carrier)

	if err := Publish(ctx, nc, "test.trace", testMsg{Name: "t"}); err != nil {
		t.Fatal(err)
	}
	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got := msg.Header.Get("traceparent"); got == "" {
		t.Fatal("expected traceparent header")
	}
}
