// Package supervisor runs a server-mode session with bounded retry.
//
// The supervisor optionally detaches the process, writes the PID file, then
// calls the engine's RunServer repeatedly. A success resets the consecutive
// failure counter; reaching MaxConsecutiveFailures ends the loop. After
// every attempt the session is reset, and a one-off session stops after its
// first attempt. The PID file is removed on every exit path once it has been
// created.
//
// Run reports only setup failures (daemonize, PID file). Every way out of the
// loop returns nil, including the failure threshold, so the invocation exits
// 0 the same way iperf3 does after "too many errors, exiting". Stats and the
// supervisor_stop event carry the reason.
//
// # Usage
//
//	sup := supervisor.New(engine, supervisor.DefaultConfig())
//	sup.SetEventBus(bus)
//	if err := sup.Run(ctx, sess); err != nil {
//	    return err
//	}
package supervisor
