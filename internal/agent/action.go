package agent

// ActionContext is the read-only view an action runs against: the
// agent's identity, its current state, and the injected pseudo-environment.
type ActionContext struct {
	AgentID string
	Module  string
	State   map[string]any
	Env     Env
}

// ActionResult is what an action returns: either a value (optionally with
// effects) or an error (spec §4.4 step 3: "ok(result), ok(result,
// effects), or error(reason)").
type ActionResult struct {
	Result  any
	Effects []Effect
	Err     error
}

// Ok returns a successful result with no effects.
func Ok(result any) ActionResult { return ActionResult{Result: result} }

// OkWithEffects returns a successful result with effects to apply.
func OkWithEffects(result any, effects []Effect) ActionResult {
	return ActionResult{Result: result, Effects: effects}
}

// Failed returns a failed action result.
func Failed(err error) ActionResult { return ActionResult{Err: err} }

// ActionFunc is the signature every action implements: `(params, context)
// -> result`.
type ActionFunc func(ctx ActionContext, params map[string]any) ActionResult

// ActionSpec binds a named action to its parameter schema and
// implementation.
type ActionSpec struct {
	Name         string
	ParamsSchema Schema
	Run          ActionFunc
}

// InvokeAction merges params over the schema's defaults, then validates the
// result strictly: a required field still missing after defaults are
// applied is an error, not just a warning (type mismatches are always
// errors). It then runs the action against the merged params.
func InvokeAction(spec ActionSpec, ctx ActionContext, params map[string]any) ActionResult {
	if params == nil {
		params = map[string]any{}
	}
	merged := spec.ParamsSchema.Defaults()
	for k, v := range params {
		merged[k] = v
	}
	if _, err := spec.ParamsSchema.Validate(merged, true); err != nil {
		return Failed(err)
	}
	return spec.Run(ctx, merged)
}
