package dataset

import (
	"time"

	"twdataset/pkg/metadata"
)

// Status classifies the outcome of an enrichment or refresh step
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Stage names
const (
	StageAuthors = "authors"
	StageMedia   = "media"
	StageRefresh = "refresh"
)

// EnrichmentResult reports how many of the requested ids a step resolved
type EnrichmentResult struct {
	Stage     string
	Status    Status
	Requested int
	Resolved  int
	Err       error
}

// classify derives the status from the counts and the first error seen.
// A step that resolved nothing because of an error failed; one that resolved
// everything without error succeeded; anything in between is partial.
func classify(requested, resolved int, err error) Status {
	switch {
	case requested == 0 && err == nil:
		return StatusSkipped
	case err != nil && resolved == 0:
		return StatusFailed
	case err == nil && resolved == requested:
		return StatusSuccess
	default:
		return StatusPartial
	}
}

func newResult(stage string, requested, resolved int, err error) EnrichmentResult {
	return EnrichmentResult{
		Stage:     stage,
		Status:    classify(requested, resolved, err),
		Requested: requested,
		Resolved:  resolved,
		Err:       err,
	}
}

// Missing returns how many requested ids were not resolved
func (r EnrichmentResult) Missing() int {
	return r.Requested - r.Resolved
}

func (r EnrichmentResult) record(at time.Time) metadata.Stage {
	s := metadata.Stage{
		Name:      r.Stage,
		Status:    string(r.Status),
		Requested: r.Requested,
		Resolved:  r.Resolved,
		At:        at,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// FetchReport summarises one Fetch call
type FetchReport struct {
	Topic            string
	Target           int
	Pages            int
	Posts            int
	SensitiveDropped int
	Duplicates       int
	Media            int
	SearchErr        error
	Enrichment       []EnrichmentResult
	SnapshotPath     string
}

// Result returns the enrichment result for stage
func (r *FetchReport) Result(stage string) (EnrichmentResult, bool) {
	for _, res := range r.Enrichment {
		if res.Stage == stage {
			return res, true
		}
	}
	return EnrichmentResult{}, false
}

// RefreshReport summarises one Refresh call
type RefreshReport struct {
	Topic        string
	At           time.Time
	Result       EnrichmentResult
	SnapshotPath string
}
