package orchestrator

import (
	"errors"
	"fmt"
	"sort"
)

// Validation errors. These are hard failures of the whole call, unlike
// adapter failures which are captured per subsystem.
var (
	ErrEmptyTenantID = errors.New("tenant ID cannot be empty")
)

// Subsystem names the external systems a deletion touches. The names
// appear verbatim in the outcome's errors list so operators can retry
// the failed piece by name.
type Subsystem string

const (
	SubsystemVector   Subsystem = "vector-index"
	SubsystemGraph    Subsystem = "graph-database"
	SubsystemStorage  Subsystem = "object-storage"
	SubsystemHosting  Subsystem = "hosting"
	SubsystemMetadata Subsystem = "tenant-metadata"
)

// Status is the aggregate result of a deletion.
type Status string

const (
	// StatusFull means every attempted step succeeded.
	StatusFull Status = "full"

	// StatusPartial means some subsystems succeeded and some failed;
	// the failed ones can be retried individually.
	StatusPartial Status = "partial"

	// StatusFailed means nothing succeeded.
	StatusFailed Status = "failed"
)

// Request describes one tenant deletion.
type Request struct {
	// TenantID identifies the tenant to remove.
	TenantID string

	// OwnerUserID is recorded for auditing; not used for authorization
	// inside the core.
	OwnerUserID string

	// DeleteVectorIndex enables the per-document vector deletion step.
	DeleteVectorIndex bool

	// DeleteGraphDatabase enables graph node deletion and the
	// irreversible graph instance drop. Skipping it is always safe.
	DeleteGraphDatabase bool
}

// Validate checks the request.
func (r *Request) Validate() error {
	if r.TenantID == "" {
		return ErrEmptyTenantID
	}
	return nil
}

// StepResult is the outcome of one subsystem's deletion step.
type StepResult struct {
	// Attempted is false for steps skipped by scope flags. A skipped
	// step counts as trivially successful for aggregation.
	Attempted bool `json:"attempted"`

	// Success is true when the step completed, including the
	// already-absent case.
	Success bool `json:"success"`

	// ItemsAffected counts documents, points, objects, or paths the
	// step removed.
	ItemsAffected int `json:"items_affected"`

	// Err holds the step's failure, nil on success.
	Err error `json:"-"`
}

// Outcome aggregates the per-subsystem results of one deletion.
type Outcome struct {
	// RunID identifies this deletion attempt in logs.
	RunID    string                   `json:"run_id"`
	TenantID string                   `json:"tenant_id"`
	Status   Status                   `json:"status"`
	Steps    map[Subsystem]StepResult `json:"steps"`

	// DocumentsDeleted counts documents fully processed by the vector
	// step.
	DocumentsDeleted int `json:"documents_deleted"`
}

func newOutcome(tenantID string) *Outcome {
	return &Outcome{
		TenantID: tenantID,
		Steps:    make(map[Subsystem]StepResult),
	}
}

// record stores a step result.
func (o *Outcome) record(sub Subsystem, res StepResult) {
	o.Steps[sub] = res
}

// skip marks a step as not requested; trivially successful.
func (o *Outcome) skip(sub Subsystem) {
	o.Steps[sub] = StepResult{Attempted: false, Success: true}
}

// TotalItems sums items affected across every step.
func (o *Outcome) TotalItems() int {
	total := 0
	for _, res := range o.Steps {
		total += res.ItemsAffected
	}
	return total
}

// ServicesCleaned lists the subsystems whose attempted steps succeeded,
// sorted for stable output.
func (o *Outcome) ServicesCleaned() []string {
	var cleaned []string
	for sub, res := range o.Steps {
		if res.Attempted && res.Success {
			cleaned = append(cleaned, string(sub))
		}
	}
	sort.Strings(cleaned)
	return cleaned
}

// Errors itemizes the failed subsystems so a retry can target exactly
// the pieces that failed.
func (o *Outcome) Errors() []string {
	var errs []string
	for sub, res := range o.Steps {
		if res.Attempted && !res.Success && res.Err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", sub, res.Err))
		}
	}
	sort.Strings(errs)
	return errs
}

// finalize computes the aggregate status: full success only when every
// attempted step succeeded, failed when nothing succeeded at all.
func (o *Outcome) finalize() {
	attempted, succeeded, failed := 0, 0, 0
	for _, res := range o.Steps {
		if !res.Attempted {
			continue
		}
		attempted++
		if res.Success {
			succeeded++
		} else {
			failed++
		}
	}

	switch {
	case failed == 0:
		o.Status = StatusFull
	case succeeded == 0 && attempted > 0:
		o.Status = StatusFailed
	default:
		o.Status = StatusPartial
	}
}
