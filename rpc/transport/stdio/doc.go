// Package stdio implements a bridge transport serving a single host session over
// the standard input and output of the process. It is meant for hosts that spawn
// the bridge as a child process and talk to it through pipes.
//
// The frames are the same as for the tcp and unix transports. The session starts
// immediately and ends when the host closes the standard input of the bridge, at
// which point Listen returns. Since standard output carries frames, loggers must
// write to standard error.
//
// There is no client connector: a Go host embeds the registry directly instead of
// spawning itself.
package stdio
