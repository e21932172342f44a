// Package dispatch routes a bootstrapped session to the server supervisor or
// the client runner, and wraps Bootstrap, dispatch and teardown into a single
// invocation that yields a process exit code.
package dispatch
