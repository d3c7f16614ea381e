package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestStartSpan_ReturnsUsableContextAndEndFunc(t *testing.T) {
	tr := New()
	ctx, end := tr.StartSpan(context.Background(), "server.signal.ingest", "agent_id", "a1", "queue_len", 3)
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	end(nil)
}

func TestStartSpan_EndWithErrorDoesNotPanic(t *testing.T) {
	tr := New()
	_, end := tr.StartSpan(context.Background(), "server.directive.exec", "directive_type", "emit")
	end(errors.New("dispatch failed"))
}

func TestToAttributes_SkipsNonStringKeysAndStringifiesUnknownValues(t *testing.T) {
	attrs := toAttributes([]any{"a", "x", 1, "skipped", "b", struct{ X int }{X: 1}})
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes (odd trailing/bad-key pair skipped), got %d: %v", len(attrs), attrs)
	}
}

func TestInitProvider_EmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), "", "jido-test", "0.0.0")
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
