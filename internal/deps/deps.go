// Package deps checks the external media binaries dubsync drives.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const listTimeout = 10 * time.Second

// Requirement names a binary the pipeline shells out to. Filters and
// Encoders are ffmpeg components the pipeline cannot run without; they are
// looked up in the binary's -filters and -encoders listings.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Filters     []string
	Encoders    []string
}

// Status reports whether a requirement is usable. Missing lists required
// components the binary was built without.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
	Missing     []string
}

// Runner executes command with args and returns its stdout.
type Runner func(ctx context.Context, command string, args ...string) (string, error)

func execRunner(ctx context.Context, command string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, command, args...).Output()
	return string(out), err
}

// CheckBinaries evaluates requirements against the binaries on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	return Check(context.Background(), requirements, execRunner)
}

// Check evaluates requirements, listing components through run.
func Check(ctx context.Context, requirements []Requirement, run Runner) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req, run))
	}
	return results
}

func check(ctx context.Context, req Requirement, run Runner) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}

	for _, list := range []struct {
		flag  string
		names []string
	}{
		{"-filters", req.Filters},
		{"-encoders", req.Encoders},
	} {
		if len(list.names) == 0 {
			continue
		}
		listCtx, cancel := context.WithTimeout(ctx, listTimeout)
		out, err := run(listCtx, path, "-hide_banner", list.flag)
		cancel()
		if err != nil {
			status.Detail = fmt.Sprintf("%s %s failed: %v", cmd, list.flag, err)
			return status
		}
		status.Missing = append(status.Missing, missingNames(out, list.names)...)
	}
	if len(status.Missing) > 0 {
		status.Detail = "built without " + strings.Join(status.Missing, ", ")
		return status
	}
	status.Available = true
	return status
}

// missingNames returns the names absent from an ffmpeg component listing.
// Listing rows carry capability flags followed by the component name.
func missingNames(listing string, names []string) []string {
	present := make(map[string]struct{})
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			present[fields[1]] = struct{}{}
		}
	}
	var missing []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || name == "copy" {
			continue
		}
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
