// Package daemon coordinates the long-running dubsync process.
//
// It wires configuration, the job store, and the pipeline engine into a
// single lifecycle with flock-based locking to prevent multiple instances.
// On start it fails segments left in flight by a previous process so they
// can be retried, then serves the HTTP status surface: job listing and
// detail, submission, cancellation, manual retry, health, and the media
// files players stream while later segments are still processing.
//
// Keep orchestration logic here: segment processing lives in the pipeline
// package while the daemon focuses on startup, shutdown, and the API.
package daemon
