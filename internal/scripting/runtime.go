package scripting

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/cadbridge/cadbridge/internal/security"
	"github.com/cadbridge/cadbridge/internal/shared/errs"
)

const (
	readIntent  = security.IntentRead
	writeIntent = security.IntentWrite
)

// Environment is the namespace one script invocation runs inside. Each
// invocation gets its own Environment, VM, and output buffer; nothing is
// shared between concurrent invocations except the immutable policy.
type Environment struct {
	policy *security.Policy
	caller RemoteCaller
	port   int

	mu     sync.Mutex
	output bytes.Buffer
}

// newEnvironment creates the environment for a single invocation.
func newEnvironment(caller RemoteCaller, port int, policy *security.Policy) *Environment {
	if policy == nil {
		policy = security.Default()
	}
	return &Environment{policy: policy, caller: caller, port: port}
}

// Output returns everything the script has printed so far.
func (env *Environment) Output() string {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.output.String()
}

func (env *Environment) printLine(parts []string) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.output.WriteString(strings.Join(parts, " "))
	env.output.WriteByte('\n')
}

// install populates the VM's global namespace. Must run on the loop thread
// before the script executes.
func (env *Environment) install(vm *goja.Runtime, loop *eventloop.EventLoop, api *apiBinding) {
	sandboxed := env.policy.Mode() == security.ModeSandboxed

	// Symbols that are not part of the script surface in either mode.
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	if sandboxed {
		// Block dynamic code evaluation; the capability registry is the only
		// way to reach host functionality.
		vm.Set("eval", goja.Undefined())
		vm.Set("Function", goja.Undefined())
	}

	vm.Set("cad", api.object(vm, loop))
	vm.Set("port", env.port)
	vm.Set("result", goja.Null())

	printFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		env.printLine(parts)
		return goja.Undefined()
	}
	vm.Set("print", printFn)

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		console.Set(level, printFn)
	}
	vm.Set("console", console)

	// File access goes through the policy in BOTH modes.
	vm.Set("readFile", env.readFileFunc(vm))
	vm.Set("writeFile", env.writeFileFunc(vm))
	vm.Set("appendFile", env.appendFileFunc(vm))

	vm.Set("require", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		c, ok := moduleRegistry[name]
		if !ok || (sandboxed && !c.sandboxSafe) {
			panic(env.throw(vm, errs.Newf(errs.KindRuntime,
				"Module '%s' is not available. Available: %s",
				name, strings.Join(moduleNames(sandboxed), ", "))))
		}
		return c.build(vm, env)
	})
}

func (env *Environment) readFileFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0).String()
		if err := env.policy.Check(path, readIntent); err != nil {
			panic(env.throw(vm, err))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(string(data))
	}
}

func (env *Environment) writeFileFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return env.writeFunc(vm, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (env *Environment) appendFileFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return env.writeFunc(vm, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (env *Environment) writeFunc(vm *goja.Runtime, flags int) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0).String()
		data := call.Argument(1).String()
		if err := env.policy.Check(path, writeIntent); err != nil {
			panic(env.throw(vm, err))
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		defer f.Close()
		if _, err := f.WriteString(data); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}
}

// throw converts a Go error into the JS error value thrown inside scripts.
// Structured errors keep their taxonomy name and carry their details and
// suggestion as properties, so scripts can catch and inspect them.
func (env *Environment) throw(vm *goja.Runtime, err error) goja.Value {
	return jsError(vm, err)
}

func jsError(vm *goja.Runtime, err error) goja.Value {
	name := "Error"
	message := err.Error()
	var se *errs.Error
	if errors.As(err, &se) {
		name = se.Name()
		message = se.Message
	}

	var obj *goja.Object
	if ctor, ok := goja.AssertConstructor(vm.Get("Error")); ok {
		if built, cerr := ctor(nil, vm.ToValue(message)); cerr == nil {
			obj = built
		}
	}
	if obj == nil {
		obj = vm.NewObject()
		obj.Set("message", message)
	}
	obj.Set("name", name)
	if se != nil {
		if len(se.Details) > 0 {
			obj.Set("details", se.Details)
		}
		if se.Suggestion != "" {
			obj.Set("suggestion", se.Suggestion)
		}
	}
	return obj
}
