// Package protocol defines the message shapes exchanged with the host
// application: the registration frame, the closed set of inbound events and
// the outbound commands, plus a Client that turns method calls into commands.
//
// Only shapes live here. Moving frames over a connection is the session
// package's job.
package protocol
