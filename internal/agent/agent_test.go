package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/antigravity-dev/jido/internal/directive"
)

var fixedClock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// sequentialStrategy is a minimal Direct-shaped Strategy used only to
// exercise the pure agent core in isolation, without depending on
// internal/strategy (which itself depends on this package).
type sequentialStrategy struct{}

func (sequentialStrategy) Init(a Agent, ctx Ctx) (Agent, []directive.Directive, error) {
	return a, nil, nil
}

func (sequentialStrategy) Cmd(a Agent, instructions []Instruction, ctx Ctx) (Agent, []directive.Directive, error) {
	state := a.State
	var directives []directive.Directive
	for _, instr := range instructions {
		spec := ctx.Actions[instr.Action]
		res := InvokeAction(spec, ActionContext{AgentID: a.ID, Module: a.Module, State: state, Env: ctx.Env}, instr.Params)
		if res.Err != nil {
			directives = append(directives, directive.Error{Type: "action_failure", Context: map[string]any{"error": res.Err.Error()}})
			break
		}
		var newState map[string]any
		var ds []directive.Directive
		var err error
		newState, ds, err = ApplyEffects(state, res.Effects)
		if err != nil {
			return a, nil, err
		}
		state = newState
		directives = append(directives, ds...)
	}
	return Agent{ID: a.ID, Module: a.Module, State: state, def: a.def}, directives, nil
}

func (sequentialStrategy) Snapshot(a Agent) Snapshot {
	n, _ := a.State["n"].(int)
	return Snapshot{Status: StatusRunning, Done: n >= 5, Result: n}
}

func counterDefinition(t *testing.T) *Definition {
	t.Helper()
	schema := Schema{Fields: map[string]Field{
		"n": {Kind: KindInt, Default: 0},
	}}
	inc := ActionSpec{
		Name: "inc",
		ParamsSchema: Schema{Fields: map[string]Field{
			"by": {Kind: KindInt, Default: 1},
		}},
		Run: func(ctx ActionContext, params map[string]any) ActionResult {
			n, _ := ctx.State["n"].(int)
			by, _ := params["by"].(int)
			return OkWithEffects(n+by, []Effect{SetState{Values: map[string]any{"n": n + by}}})
		},
	}
	def, err := NewDefinition("counter", schema, map[string]ActionSpec{"inc": inc}, sequentialStrategy{}, nil, NewFixedEnv(fixedClock, "counter"))
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}
	return def
}

func TestNew_MergesDefaultsAndValidates(t *testing.T) {
	def := counterDefinition(t)
	a, err := New(def, NewOpts{ID: "c1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.State["n"] != 0 {
		t.Fatalf("expected default n=0, got %v", a.State["n"])
	}
}

func TestCmd_InvokesActionAndAppliesEffects(t *testing.T) {
	def := counterDefinition(t)
	a, err := New(def, NewOpts{ID: "c1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a2, ds := Cmd(a, Instruction{Action: "inc", Params: map[string]any{"by": 3}})
	if len(ds) != 0 {
		t.Fatalf("expected no directives, got %v", ds)
	}
	if a2.State["n"] != 3 {
		t.Fatalf("expected n=3, got %v", a2.State["n"])
	}

	a3, _ := Cmd(a2, "inc")
	if a3.State["n"] != 4 {
		t.Fatalf("expected n=4 after bare action id with default by=1, got %v", a3.State["n"])
	}
}

func TestCmd_RejectsDisallowedAction(t *testing.T) {
	def := counterDefinition(t)
	a, _ := New(def, NewOpts{ID: "c1"})

	a2, ds := Cmd(a, "nonexistent")
	if a2.State["n"] != a.State["n"] {
		t.Fatalf("expected agent unchanged on action_not_allowed")
	}
	if len(ds) != 1 {
		t.Fatalf("expected exactly one Error directive, got %v", ds)
	}
	errDir, ok := ds[0].(directive.Error)
	if !ok || errDir.Type != "action_not_allowed" {
		t.Fatalf("expected action_not_allowed directive, got %+v", ds[0])
	}
}

func TestCmd_Determinism(t *testing.T) {
	def := counterDefinition(t)
	a, _ := New(def, NewOpts{ID: "c1"})

	a1, ds1 := Cmd(a, Instruction{Action: "inc", Params: map[string]any{"by": 2}})
	a2, ds2 := Cmd(a, Instruction{Action: "inc", Params: map[string]any{"by": 2}})

	if a1.State["n"] != a2.State["n"] {
		t.Fatalf("cmd not deterministic: %v vs %v", a1.State["n"], a2.State["n"])
	}
	if len(ds1) != len(ds2) {
		t.Fatalf("directive count differs across identical calls")
	}
}

func TestSet_NonStrictAllowsMissingRequired(t *testing.T) {
	schema := Schema{Fields: map[string]Field{
		"required_field": {Kind: KindString, Required: true},
	}}
	def, err := NewDefinition("strict-test", schema, nil, sequentialStrategy{}, nil, NewFixedEnv(fixedClock, "s"))
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}
	a := Agent{ID: "x", Module: "strict-test", State: map[string]any{}, def: def}

	if _, err := Set(a, map[string]any{"other": "x"}); err != nil {
		t.Fatalf("Set (non-strict) should accept missing required field: %v", err)
	}
	if _, err := SetStrict(a, map[string]any{"other": "x"}); !errors.Is(err, ErrSchema) {
		t.Fatalf("SetStrict should reject missing required field, got %v", err)
	}
}
