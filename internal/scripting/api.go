package scripting

import (
	"context"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/cadbridge/cadbridge/internal/shared/errs"
)

// keepAliveTick is the period of the no-op interval that holds the event
// loop open while a remote call is in flight off-loop.
const keepAliveTick = 25 * time.Millisecond

// RemoteCaller is the capability the script's remote entry points forward to.
// Calls are expected to be atomic: a cancelled call leaves the remote in a
// recoverable state.
type RemoteCaller interface {
	Execute(ctx context.Context, command string, parameters map[string]any) (map[string]any, error)
}

// apiBinding exposes the two remote entry points to the script as the global
// `cad` object. Both return promises; the script must await them. These are
// the only suspension points a script has.
type apiBinding struct {
	caller RemoteCaller
	ctx    context.Context
}

func newAPIBinding(ctx context.Context, caller RemoteCaller) *apiBinding {
	return &apiBinding{caller: caller, ctx: ctx}
}

func (a *apiBinding) object(vm *goja.Runtime, loop *eventloop.EventLoop) *goja.Object {
	obj := vm.NewObject()

	// Add-on commands go out under their bare name.
	obj.Set("addon", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		return a.dispatch(vm, loop, name, call.Argument(1))
	})

	// Built-in commands get the API. prefix added if missing.
	obj.Set("command", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if !strings.HasPrefix(name, "API.") {
			name = "API." + name
		}
		return a.dispatch(vm, loop, name, call.Argument(1))
	})

	return obj
}

// dispatch issues the remote call off the loop and settles a promise back on
// it via RunOnLoop. A no-op interval keeps the loop from draining while the
// call is in flight; it is cleared when the promise settles.
func (a *apiBinding) dispatch(vm *goja.Runtime, loop *eventloop.EventLoop, command string, paramsVal goja.Value) goja.Value {
	params := exportParams(paramsVal)

	promise, resolve, reject := vm.NewPromise()

	if a.caller == nil {
		reject(jsError(vm, errs.New(errs.KindConnectivity, "No CAD instance attached to this invocation")))
		return vm.ToValue(promise)
	}

	keepAlive := loop.SetInterval(func(*goja.Runtime) {}, keepAliveTick)

	go func() {
		result, err := a.caller.Execute(a.ctx, command, params)
		loop.RunOnLoop(func(vm *goja.Runtime) {
			loop.ClearInterval(keepAlive)
			if err != nil {
				reject(jsError(vm, err))
				return
			}
			resolve(vm.ToValue(result))
		})
	}()

	return vm.ToValue(promise)
}

func exportParams(v goja.Value) map[string]any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return map[string]any{}
	}
	if m, ok := v.Export().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
