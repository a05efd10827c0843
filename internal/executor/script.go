package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// scriptTool wraps a compiled goja program. Each invocation gets a fresh
// VM so scripts cannot leak state between calls; the program itself is
// compiled once at registration.
type scriptTool struct {
	name string
	prog *goja.Program
}

func compileScript(name, src string) (*scriptTool, error) {
	prog, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, err
	}
	return &scriptTool{name: name, prog: prog}, nil
}

// invoke runs the script's run(params) function. A watchdog interrupts
// the VM when ctx is cancelled so runaway scripts honor the deadline.
func (s *scriptTool) invoke(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	vm := goja.New()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunProgram(s.prog); err != nil {
		return nil, scriptErr(ctx, s.name, err)
	}

	runFn, ok := goja.AssertFunction(vm.Get("run"))
	if !ok {
		return nil, fmt.Errorf("script %s: missing run(params) function", s.name)
	}

	var args map[string]any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, fmt.Errorf("script %s: decode params: %w", s.name, err)
		}
	}

	v, err := runFn(goja.Undefined(), vm.ToValue(args))
	if err != nil {
		return nil, scriptErr(ctx, s.name, err)
	}

	out, err := json.Marshal(v.Export())
	if err != nil {
		return nil, fmt.Errorf("script %s: encode result: %w", s.name, err)
	}
	return out, nil
}

// scriptErr maps a VM interrupt back to the context error so callers see
// a deadline, not a goja internal.
func scriptErr(ctx context.Context, name string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("script %s: %w", name, err)
}
