package scripting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// moduleBuilder constructs a module object inside a specific VM.
type moduleBuilder func(vm *goja.Runtime, env *Environment) *goja.Object

// capability is one entry of the require() registry. Modules not marked
// sandboxSafe resolve only in unrestricted mode.
type capability struct {
	sandboxSafe bool
	build       moduleBuilder
}

// moduleRegistry is the fixed set of named capabilities scripts can request.
// There is no dynamic code loading; unrecognized names fail closed.
var moduleRegistry = map[string]capability{
	"fs":   {sandboxSafe: true, build: buildFS},
	"path": {sandboxSafe: true, build: buildPath},
	"csv":  {sandboxSafe: true, build: buildCSV},
	"uuid": {sandboxSafe: true, build: buildUUID},
	"os":   {sandboxSafe: false, build: buildOS},
}

// moduleNames returns the names loadable in the given mode, sorted.
func moduleNames(sandboxed bool) []string {
	names := make([]string, 0, len(moduleRegistry))
	for name, c := range moduleRegistry {
		if sandboxed && !c.sandboxSafe {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildFS exposes policy-gated file operations. The same checks back the
// global readFile/writeFile functions, so file access restriction is
// identical through either surface.
func buildFS(vm *goja.Runtime, env *Environment) *goja.Object {
	obj := vm.NewObject()
	obj.Set("readFile", env.readFileFunc(vm))
	obj.Set("writeFile", env.writeFileFunc(vm))
	obj.Set("appendFile", env.appendFileFunc(vm))
	obj.Set("exists", func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0).String()
		if err := env.policy.Check(path, readIntent); err != nil {
			panic(env.throw(vm, err))
		}
		_, err := os.Stat(path)
		return vm.ToValue(err == nil)
	})
	return obj
}

func buildPath(vm *goja.Runtime, _ *Environment) *goja.Object {
	obj := vm.NewObject()
	obj.Set("join", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		return vm.ToValue(filepath.ToSlash(filepath.Join(parts...)))
	})
	obj.Set("dir", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(filepath.ToSlash(filepath.Dir(call.Argument(0).String())))
	})
	obj.Set("base", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(filepath.Base(call.Argument(0).String()))
	})
	obj.Set("ext", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(filepath.Ext(call.Argument(0).String()))
	})
	return obj
}

func buildCSV(vm *goja.Runtime, _ *Environment) *goja.Object {
	obj := vm.NewObject()
	obj.Set("parse", func(call goja.FunctionCall) goja.Value {
		r := csv.NewReader(strings.NewReader(call.Argument(0).String()))
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("csv parse failed: %w", err)))
		}
		return vm.ToValue(rows)
	})
	obj.Set("format", func(call goja.FunctionCall) goja.Value {
		exported := call.Argument(0).Export()
		rows, ok := exported.([]any)
		if !ok {
			panic(vm.NewTypeError("csv.format expects an array of rows"))
		}
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		for _, row := range rows {
			cells, ok := row.([]any)
			if !ok {
				panic(vm.NewTypeError("csv.format expects each row to be an array"))
			}
			record := make([]string, len(cells))
			for i, cell := range cells {
				record[i] = fmt.Sprint(cell)
			}
			if err := w.Write(record); err != nil {
				panic(vm.NewGoError(err))
			}
		}
		w.Flush()
		return vm.ToValue(buf.String())
	})
	return obj
}

func buildUUID(vm *goja.Runtime, _ *Environment) *goja.Object {
	obj := vm.NewObject()
	obj.Set("v4", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(uuid.NewString())
	})
	return obj
}

// buildOS exposes host details. Unrestricted mode only.
func buildOS(vm *goja.Runtime, _ *Environment) *goja.Object {
	obj := vm.NewObject()
	obj.Set("hostname", func(call goja.FunctionCall) goja.Value {
		name, _ := os.Hostname()
		return vm.ToValue(name)
	})
	obj.Set("tempdir", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(filepath.ToSlash(os.TempDir()))
	})
	obj.Set("homedir", func(call goja.FunctionCall) goja.Value {
		home, _ := os.UserHomeDir()
		return vm.ToValue(filepath.ToSlash(home))
	})
	obj.Set("env", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(os.Getenv(call.Argument(0).String()))
	})
	return obj
}
