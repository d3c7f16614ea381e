package directive

import (
	"context"
	"testing"

	"github.com/antigravity-dev/jido/internal/signal"
)

func TestTable_ExecDispatchesByKind(t *testing.T) {
	var gotReason string
	table := Table{
		"stop_child": func(ctx context.Context, d Directive, origin signal.Signal) (Result, error) {
			sc := d.(StopChild)
			gotReason = sc.Reason
			return OK(), nil
		},
	}

	origin, err := signal.New("1", "/agents/a", "task.done")
	if err != nil {
		t.Fatalf("signal.New: %v", err)
	}

	res, err := table.Exec(context.Background(), StopChild{Tag: "w", Reason: "done"}, origin)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Outcome != Continue {
		t.Fatalf("Outcome = %v, want Continue", res.Outcome)
	}
	if gotReason != "done" {
		t.Fatalf("executor did not receive directive, reason = %q", gotReason)
	}
}

func TestTable_ExecUnregisteredKindErrors(t *testing.T) {
	table := Table{}
	origin, _ := signal.New("1", "/agents/a", "task.done")
	if _, err := table.Exec(context.Background(), Stop{Reason: "normal"}, origin); err == nil {
		t.Fatal("expected error for unregistered directive kind")
	}
}

func TestResultConstructors(t *testing.T) {
	if OK().Outcome != Continue {
		t.Fatal("OK() should be Continue")
	}
	if Async().Outcome != AsyncScheduled {
		t.Fatal("Async() should be AsyncScheduled")
	}
	if r := StopWith("shutdown"); r.Outcome != StopRequested || r.Reason != "shutdown" {
		t.Fatalf("StopWith mismatch: %+v", r)
	}
	if r := ErrorWith("boom"); r.Outcome != Failed || r.Reason != "boom" {
		t.Fatalf("ErrorWith mismatch: %+v", r)
	}
}

func TestDirectiveKinds(t *testing.T) {
	cases := []struct {
		d    Directive
		want string
	}{
		{Emit{}, "emit"},
		{Error{}, "error"},
		{Spawn{}, "spawn"},
		{SpawnAgent{}, "spawn_agent"},
		{StopChild{}, "stop_child"},
		{Schedule{}, "schedule"},
		{Cron{}, "cron"},
		{CronCancel{}, "cron_cancel"},
		{Stop{}, "stop"},
	}
	for _, c := range cases {
		if got := c.d.Kind(); got != c.want {
			t.Errorf("Kind() = %q, want %q", got, c.want)
		}
	}
}
