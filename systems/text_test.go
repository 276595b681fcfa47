package systems

import (
	"context"
	"testing"

	"github.com/jiri/constellation/core"
)

func TestText_QueuesSwapInOrder(t *testing.T) {
	txt := NewText()
	rec := &testRecorder{}
	txt.SetRecorder(rec)
	ports := newPorts(2)

	txt.Send(ports[0], "x")
	txt.Send(ports[0], "y")
	txt.Send(ports[1], "z")
	if txt.Pending(ports[0]) != 2 {
		t.Fatalf("Pending = %d, want 2", txt.Pending(ports[0]))
	}

	if err := txt.Update(context.Background(), []core.Connection{conn(ports[0], ports[1], core.TextOnly())}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	for _, want := range []string{"x", "y"} {
		got, ok := txt.Receive(ports[1])
		if !ok || got != want {
			t.Fatalf("Receive(b) = %q,%v, want %q", got, ok, want)
		}
	}
	if got, ok := txt.Receive(ports[0]); !ok || got != "z" {
		t.Fatalf("Receive(a) = %q,%v, want z", got, ok)
	}
	if _, ok := txt.Receive(ports[0]); ok {
		t.Fatalf("queue not drained")
	}
	if rec.messages != 3 {
		t.Fatalf("messages = %d, want 3", rec.messages)
	}
}

func TestText_IgnoresDisabledConnections(t *testing.T) {
	txt := NewText()
	ports := newPorts(2)
	txt.Send(ports[0], "hello")

	_ = txt.Update(context.Background(), []core.Connection{conn(ports[0], ports[1], core.PictureOnly(0))})

	if txt.Pending(ports[1]) != 0 {
		t.Fatalf("message crossed a connection without text")
	}
	txt.Forget(ports[0])
	if txt.Pending(ports[0]) != 0 {
		t.Fatalf("Forget kept the queue")
	}
}
