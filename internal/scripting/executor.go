package scripting

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cadbridge/cadbridge/internal/logging"
	"github.com/cadbridge/cadbridge/internal/security"
	"github.com/cadbridge/cadbridge/internal/shared/types"
)

const scriptFilename = "script.js"

// The async wrapper adds exactly one line before the script body; reported
// line numbers subtract it so they index into the original source.
const wrapperPrefixLines = 1

var (
	syntaxLineRe = regexp.MustCompile(`Line (\d+):\d+`)
	stackLineRe  = regexp.MustCompile(`script\.js:(\d+)`)
	moreErrorsRe = regexp.MustCompile(`\s*\(and \d+ more errors?\)\s*$`)
)

// Request describes one script invocation.
type Request struct {
	Script  string
	Caller  RemoteCaller
	Port    int
	Timeout time.Duration // zero means no timeout
	Policy  *security.Policy
}

// Executor runs scripts inside per-invocation sandboxed runtimes. It is
// stateless and safe for concurrent use; every invocation gets a fresh VM,
// event loop, and output buffer.
type Executor struct {
	log *logging.Logger
}

// NewExecutor creates an executor.
func NewExecutor(log *logging.Logger) *Executor {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Executor{log: log}
}

// Run executes a script and returns its structured result. It never returns
// a raised error: compile failures, runtime errors, policy violations, and
// timeouts are all captured in the result.
func (e *Executor) Run(ctx context.Context, req Request) types.ExecutionResult {
	start := time.Now()
	invocation := uuid.NewString()

	env := newEnvironment(req.Caller, req.Port, req.Policy)

	fail := func(msg string) types.ExecutionResult {
		return types.ExecutionResult{
			Success:    false,
			Output:     env.Output(),
			Error:      msg,
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	prog, err := goja.Compile(scriptFilename, wrapScript(req.Script), false)
	if err != nil {
		e.log.Debug("script failed to compile",
			zap.String("invocation", invocation), zap.Error(err))
		return fail(formatCompileError(err, req.Script))
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	api := newAPIBinding(ctx, req.Caller)
	loop := eventloop.NewEventLoop()

	var (
		vm       *goja.Runtime
		runErr   error
		promise  *goja.Promise
		timedOut atomic.Bool
	)
	watchdogDone := make(chan struct{})

	loop.Run(func(rt *goja.Runtime) {
		vm = rt
		env.install(rt, loop, api)

		// Interrupt compute-bound code when the deadline passes; remote calls
		// are cancelled through the context.
		go func() {
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					timedOut.Store(true)
				}
				rt.Interrupt("execution interrupted")
			case <-watchdogDone:
			}
		}()

		v, err := rt.RunProgram(prog)
		if err != nil {
			runErr = err
			return
		}
		promise, _ = v.Export().(*goja.Promise)
	})
	close(watchdogDone)

	duration := time.Since(start)

	if timedOut.Load() {
		e.log.Debug("script timed out",
			zap.String("invocation", invocation), zap.Duration("timeout", req.Timeout))
		return types.ExecutionResult{
			Success:    false,
			Output:     env.Output(),
			Error:      fmt.Sprintf("Script timed out after %s seconds", formatSeconds(req.Timeout)),
			DurationMS: duration.Milliseconds(),
		}
	}

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			return fail("Script execution cancelled")
		}
		return fail(e.formatThrown(runErr, req.Script))
	}

	if promise != nil {
		switch promise.State() {
		case goja.PromiseStateRejected:
			return fail(formatErrorValue(promise.Result(), req.Script))
		case goja.PromiseStatePending:
			return fail("Script never completed: a pending operation was abandoned")
		}
	}

	var value any
	if raw := vm.Get("result"); raw != nil && !goja.IsUndefined(raw) && !goja.IsNull(raw) {
		value = Normalize(raw.Export())
	}

	e.log.Debug("script completed",
		zap.String("invocation", invocation), zap.Duration("duration", duration))

	return types.ExecutionResult{
		Success:    true,
		Value:      value,
		Output:     env.Output(),
		DurationMS: duration.Milliseconds(),
	}
}

// wrapScript turns the script into an awaited async body so the remote entry
// points can suspend it.
func wrapScript(script string) string {
	return "(async () => {\n" + script + "\n})()"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// formatCompileError reports the syntax error against the original script's
// line numbering. Errors that goja attributes to the async wrapper itself,
// such as an unbalanced delimiter surfacing at the wrapper's closing line,
// are re-derived by compiling the raw script so the reported line stays
// inside the script.
func formatCompileError(err error, script string) string {
	line, detail, ok := syntaxErrorParts(err)
	if !ok {
		return "Syntax error: " + err.Error()
	}

	line -= wrapperPrefixLines
	lineCount := strings.Count(script, "\n") + 1
	if line < 1 || line > lineCount {
		if _, rawErr := goja.Compile(scriptFilename, script, false); rawErr != nil {
			if rawLine, rawDetail, rawOK := syntaxErrorParts(rawErr); rawOK {
				line, detail = rawLine, rawDetail
			}
		}
		if line < 1 {
			line = 1
		}
		if line > lineCount {
			line = lineCount
		}
	}
	return fmt.Sprintf("Syntax error at line %d: %s", line, detail)
}

// syntaxErrorParts extracts the line number and first message line from a
// goja compile error.
func syntaxErrorParts(err error) (int, string, bool) {
	msg := err.Error()
	loc := syntaxLineRe.FindStringSubmatchIndex(msg)
	if loc == nil {
		return 0, "", false
	}
	line, _ := strconv.Atoi(msg[loc[2]:loc[3]])

	detail := strings.TrimSpace(msg[loc[1]:])
	if i := strings.IndexByte(detail, '\n'); i >= 0 {
		detail = detail[:i]
	}
	detail = moreErrorsRe.ReplaceAllString(detail, "")
	return line, strings.TrimSpace(detail), true
}

// formatThrown renders an error returned by the VM itself.
func (e *Executor) formatThrown(err error, script string) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return formatErrorValue(ex.Value(), script)
	}
	return err.Error()
}

// formatErrorValue renders a thrown JS value as
// "Line <n>: <ErrorKind>: <message>" plus the offending source line when the
// stack resolves to one.
func formatErrorValue(v goja.Value, script string) string {
	name := "Error"
	message := ""
	line := 0

	if obj, ok := v.(*goja.Object); ok {
		if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
			name = n.String()
		}
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			message = m.String()
		}
		if s := obj.Get("stack"); s != nil && !goja.IsUndefined(s) {
			if m := stackLineRe.FindStringSubmatch(s.String()); m != nil {
				wrapped, _ := strconv.Atoi(m[1])
				line = wrapped - wrapperPrefixLines
			}
		}
	}
	if message == "" {
		message = v.String()
	}

	if line <= 0 {
		return fmt.Sprintf("%s: %s", name, message)
	}

	lines := strings.Split(script, "\n")
	if line <= len(lines) {
		offending := strings.TrimSpace(lines[line-1])
		return fmt.Sprintf("Line %d: %s: %s\n  > %s", line, name, message, offending)
	}
	return fmt.Sprintf("Line %d: %s: %s", line, name, message)
}
