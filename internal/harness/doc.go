// Package harness repeats a full test invocation several times.
//
// Each iteration hands a fresh copy of the argument vector to an Invoker.
// From the second iteration on, the value after the first port flag is
// replaced with base+iteration so consecutive runs do not collide on a port
// still held from the previous run. When a server flag appears anywhere in
// the arguments the harness runs a single iteration, since the server
// supervisor loops on its own.
//
// Every iteration, including the last, is followed by a fixed pause.
// Monotonic timestamps are printed before the first and after the last
// iteration.
//
// # Usage
//
//	h := harness.New(pipeline, harness.DefaultConfig())
//	result := h.Run(ctx, os.Args[1:])
//	os.Exit(result.ExitCode(harness.ExitIgnore))
package harness
