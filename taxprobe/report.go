package taxprobe

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ReportOutcome string

const (
	// OutcomeMeasured is a completed probe with a fee.
	OutcomeMeasured ReportOutcome = "measured"

	// OutcomeResolved is a completed inspection, which stops after owner
	// resolution.
	OutcomeResolved ReportOutcome = "resolved"

	OutcomeFailed ReportOutcome = "failed"
)

// Report describes one run. It is returned for failed runs too, filled in
// up to the step that failed.
type Report struct {
	RunID   string         `json:"runId"`
	Network string         `json:"network"`
	Token   common.Address `json:"token"`
	Creator common.Address `json:"creator"`

	// BlockNumber is the requested fork block, zero for the upstream head.
	BlockNumber uint64 `json:"blockNumber"`
	ForkedAt    uint64 `json:"forkedAt,omitempty"`

	Router  common.Address `json:"router"`
	Factory common.Address `json:"factory"`
	WETH    common.Address `json:"weth,omitempty"`

	StartedAt time.Time `json:"startedAt"`
	Elapsed   string    `json:"elapsed"`

	Outcome    ReportOutcome `json:"outcome"`
	Failure    string        `json:"failure,omitempty"`
	ErrorClass string        `json:"errorClass,omitempty"`

	// Reason is the FailureReason of a failed run, e.g. no-tradable-amount.
	Reason string `json:"reason,omitempty"`

	Profile    *TokenProfile    `json:"profile,omitempty"`
	Resolution *OwnerResolution `json:"resolution,omitempty"`
	Bootstrap  *BootstrapResult `json:"bootstrap,omitempty"`

	ProbeState string       `json:"probeState,omitempty"`
	Attempts   int          `json:"attempts"`
	Probe      *ProbeResult `json:"probe,omitempty"`
}

func (r *Report) Succeeded() bool {
	return r.Outcome == OutcomeMeasured || r.Outcome == OutcomeResolved
}

func (r *Report) finish(success ReportOutcome, err error) {
	r.Elapsed = time.Since(r.StartedAt).Round(time.Millisecond).String()
	if err == nil {
		r.Outcome = success
		return
	}
	r.Outcome = OutcomeFailed
	r.Failure = err.Error()
	r.ErrorClass = ErrorClass(err)
	r.Reason = FailureReason(err)
	r.Probe = nil
}
