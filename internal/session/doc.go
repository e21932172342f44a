// Package session defines the Test Session, the contract of the Test Engine
// that performs the actual measurement, and Bootstrap, which turns a raw
// argument vector into a ready-to-dispatch session.
//
// Every fallible operation returns an error tagged with a Kind so callers can
// tell an argument problem from a pidfile problem without a shared
// last-error slot:
//
//	s, err := session.Bootstrap(engine, args)
//	if session.KindOf(err) == session.KindArgument {
//	    engine.UsageLong(os.Stderr)
//	}
package session
