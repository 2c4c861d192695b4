// Package redis implements the command-execution core of a client for a
// single-server in-memory key/value and pub/sub service: a retrying,
// reconnecting state machine around one network connection, with
// pipelining, transactions, a pub/sub handoff and cursor-based scans.
//
// Wire serialization, the socket driver, configuration and
// instrumentation hooks are modeled as injected collaborators
// (Codec, Driver, Config, Middleware) so the state machine itself stays
// transport-agnostic. A RESP-2 Codec and a TCP Driver are included for
// out-of-the-box use.
package redis
