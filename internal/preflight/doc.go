// Package preflight provides readiness checks for the media tools,
// directories, and collaborator API that dubsync depends on.
//
// The daemon reports these checks on /api/status, and the CLI status
// command prints them before the job summary.
package preflight
