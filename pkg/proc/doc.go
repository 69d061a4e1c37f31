// Package proc is the process control engine used by unloop.
//
// It attaches to a running single-threaded process, suspends it, reads the
// register snapshot of its thread, rewrites it with one of two control flow
// strategies and resumes the process. The operating system primitives are
// consumed through the Backend interface, the Linux implementation lives in
// pkg/proc/native.
//
// Once Suspend succeeds the session always attempts Resume exactly once,
// whatever happens afterwards.
package proc
