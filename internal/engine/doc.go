// Package engine is a minimal Test Engine for the harness.
//
// It understands a small iperf3-like option set and moves bytes over a single
// TCP connection: the server drains whatever the client sends for the
// configured duration and both sides log the byte count. It does not
// implement the iperf3 control protocol and does not compute bandwidth.
//
//	-s, --server         run as server
//	-c, --client host    run as client connecting to host
//	-p, --port n         port (default 5201)
//	-t, --time n         client send time in seconds (default 10)
//	-D, --daemon         detach before serving (server only)
//	-1, --one-off        serve a single client, then exit (server only)
//	-I, --pidfile path   write a PID file (server only)
package engine
