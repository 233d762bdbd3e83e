package taxprobe

import (
	"errors"
	"fmt"

	"github.com/0xsequence/feeprobe/ethcontract"
	"github.com/goware/superr"
)

// Error classes. Every error returned by a run matches exactly one of them
// with errors.Is, in addition to its specific cause.
var (
	// ErrEnvironment covers the fork, the upstream node and the transport.
	ErrEnvironment = errors.New("environment")

	// ErrHeuristic means the token does not fit the assumptions the probe
	// makes about it.
	ErrHeuristic = errors.New("heuristic")

	// ErrSetup means the pool could not be bootstrapped or the run was
	// misconfigured.
	ErrSetup = errors.New("setup")
)

var (
	ErrZeroBalance        = errors.New("taxprobe: neither owner nor creator holds the token")
	ErrNotAnERC20         = errors.New("taxprobe: token does not answer erc20 calls")
	ErrNoTradableAmount   = errors.New("taxprobe: no swap succeeded in the sweep")
	ErrApproveFailed      = errors.New("taxprobe: approve failed")
	ErrAddLiquidityFailed = errors.New("taxprobe: addLiquidityETH failed")
	ErrInvalidParams      = errors.New("taxprobe: invalid parameters")
)

// ErrorClass names the class of err: environment, heuristic or setup. It
// returns an empty string for nil.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrHeuristic):
		return ErrHeuristic.Error()
	case errors.Is(err, ErrSetup):
		return ErrSetup.Error()
	}
	return ErrEnvironment.Error()
}

// Failure reasons, one per cause a run can stop on.
const (
	ReasonZeroBalance        = "zero-balance"
	ReasonNotAnERC20         = "not-an-erc20"
	ReasonNoTradableAmount   = "no-tradable-amount"
	ReasonApproveFailed      = "approve-failed"
	ReasonAddLiquidityFailed = "add-liquidity-failed"
	ReasonInvalidParams      = "invalid-params"
	ReasonEnvironment        = "environment"
)

var reasons = []struct {
	cause  error
	reason string
}{
	{ErrZeroBalance, ReasonZeroBalance},
	{ErrNotAnERC20, ReasonNotAnERC20},
	{ErrNoTradableAmount, ReasonNoTradableAmount},
	{ErrApproveFailed, ReasonApproveFailed},
	{ErrAddLiquidityFailed, ReasonAddLiquidityFailed},
	{ErrInvalidParams, ReasonInvalidParams},
}

// FailureReason names the cause of err. Errors without one of the causes
// above are reported as environment failures. It returns an empty string
// for nil.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.cause) {
			return r.reason
		}
	}
	return ReasonEnvironment
}

func environmentErr(op string, err error) error {
	if errors.Is(err, ErrEnvironment) {
		return err
	}
	return superr.New(ErrEnvironment, fmt.Errorf("taxprobe: %s: %w", op, err))
}

func heuristicErr(cause error, detail error) error {
	if detail == nil {
		return superr.New(ErrHeuristic, cause)
	}
	return superr.New(ErrHeuristic, fmt.Errorf("%w: %w", cause, detail))
}

func setupErr(cause error, detail error) error {
	if detail == nil {
		return superr.New(ErrSetup, cause)
	}
	return superr.New(ErrSetup, fmt.Errorf("%w: %w", cause, detail))
}

// tokenCallErr classifies a failed token view call. The contract rejecting
// the call means the token is not an ERC20; anything else is the fork.
func tokenCallErr(op string, err error) error {
	if ethcontract.IsContractFailure(err) {
		return heuristicErr(ErrNotAnERC20, err)
	}
	return environmentErr(op, err)
}
