/*
Package scripting executes caller-supplied scripts against a CAD instance's
automation API inside a sandboxed goja runtime.

Every invocation gets its own VM, event loop, and output buffer, so
concurrent invocations share nothing but the immutable security policy. The
script surface is:

  - cad.addon(name, params) / cad.command(name, params): the only two remote
    entry points, both returning promises the script must await
  - port: the target instance identifier
  - result: assign the value to return to the caller
  - print / console.*: captured into the invocation's output buffer
  - readFile / writeFile / appendFile: file access gated by the security
    policy in both modes
  - require(name): a fixed capability registry; in sandboxed mode only
    sandbox-safe modules resolve and unknown names fail with the allowed set

The executor never raises: syntax errors, runtime errors, policy violations,
and timeouts all come back as a structured ExecutionResult, with error lines
mapped to the submitted script's numbering.
*/
package scripting
