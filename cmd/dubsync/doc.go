// Command dubsync runs and inspects elastic dubbing jobs.
//
// `dubsync serve` starts the daemon: the segment pipeline plus the HTTP
// status surface that players poll for ready clips. `dubsync run` processes
// one source in the foreground without a daemon. The remaining commands
// (submit, jobs, status, cancel, retry) talk to a running daemon over its
// HTTP API; config init/show/validate work offline.
package main
