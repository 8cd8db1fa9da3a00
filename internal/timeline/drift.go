package timeline

import (
	"fmt"

	"dubsync/internal/dub"
	"dubsync/internal/services"
)

// Drift accumulates freeze time on the output timeline.
type Drift struct {
	offsetMS  float64
	totalMS   float64
	ceilingMS float64
}

// NewDrift starts a fresh accumulator. A ceiling of zero disables the limit.
func NewDrift(ceilingMS float64) *Drift {
	return &Drift{ceilingMS: ceilingMS}
}

// ResumeDrift builds an accumulator for re-placing a single segment of an
// existing job: offsetMS is the drift committed ahead of that segment and
// totalMS is the job's drift so far.
func ResumeDrift(offsetMS, totalMS, ceilingMS float64) *Drift {
	return &Drift{offsetMS: offsetMS, totalMS: totalMS, ceilingMS: ceilingMS}
}

// OffsetMS returns the drift the next placed segment receives.
func (d *Drift) OffsetMS() float64 { return d.offsetMS }

// TotalMS returns all drift committed so far.
func (d *Drift) TotalMS() float64 { return d.totalMS }

// Place returns the output start of seg under the current drift.
func (d *Drift) Place(seg dub.DubSegment) float64 {
	return seg.StartMS + d.offsetMS
}

// Admit reports whether freezeMS more drift fits under the ceiling.
func (d *Drift) Admit(freezeMS float64) error {
	if freezeMS <= 0 || d.ceilingMS <= 0 {
		return nil
	}
	if d.totalMS+freezeMS > d.ceilingMS {
		return services.Wrap(services.ErrDriftCeiling, "timeline", "admit",
			fmt.Sprintf("freeze %.1fms would take drift to %.1fms (ceiling %.1fms)", freezeMS, d.totalMS+freezeMS, d.ceilingMS), nil)
	}
	return nil
}

// Commit adds freezeMS to the accumulated drift.
func (d *Drift) Commit(freezeMS float64) {
	if freezeMS <= 0 {
		return
	}
	d.offsetMS += freezeMS
	d.totalMS += freezeMS
}
