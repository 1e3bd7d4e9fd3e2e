// Package execution turns execution payloads into output.
//
// A payload carries either source_code, run directly as a Python program,
// or notebook, an nbformat 4 document given as an object or a serialized
// string. The Service runs it through a sandbox.SandboxExecutor and returns
// the captured text, or an *Error whose message embeds the failure and
// whose StatusCode tells transports how to report it.
package execution
