// Package cloud bridges the asynchronous cloud anchor service to the
// tick-driven lifecycle manager.
//
// The service hands back promises. The Tracker wraps each promise in an
// Operation whose outcome is observed by polling on a later tick; nothing
// here calls back into the manager.
package cloud

import "github.com/roach88/anchorkeep/internal/anchor"

// State is the cloud anchor state reported by the service.
// Only StateSuccess is treated as success; every other state names the
// failure reason.
type State string

const (
	StateNone                               State = "None"
	StateSuccess                            State = "Success"
	StateTaskInProgress                     State = "TaskInProgress"
	StateErrorInternal                      State = "ErrorInternal"
	StateErrorNotAuthorized                 State = "ErrorNotAuthorized"
	StateErrorResourceExhausted             State = "ErrorResourceExhausted"
	StateErrorHostingDatasetProcessingFailed State = "ErrorHostingDatasetProcessingFailed"
	StateErrorResolvingCloudIDNotFound      State = "ErrorResolvingCloudIdNotFound"
	StateErrorResolvingPackageTooOld        State = "ErrorResolvingPackageTooOld"
	StateErrorResolvingPackageTooNew        State = "ErrorResolvingPackageTooNew"
	StateErrorHostingServiceUnavailable     State = "ErrorHostingServiceUnavailable"
)

// Success reports whether the state is StateSuccess.
func (s State) Success() bool {
	return s == StateSuccess
}

// PromiseState is the lifecycle of an asynchronous service call.
type PromiseState int

const (
	PromisePending PromiseState = iota
	PromiseDone
	PromiseCancelled
)

func (s PromiseState) String() string {
	switch s {
	case PromisePending:
		return "Pending"
	case PromiseDone:
		return "Done"
	case PromiseCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Promise is an asynchronous result. Result is meaningful only once State
// reports PromiseDone. Cancel asks the service to abandon the call; a call
// that already finished stays Done.
type Promise[T any] interface {
	State() PromiseState
	Result() T
	Cancel()
}

// HostResult is the outcome of hosting an anchor.
type HostResult struct {
	State   State
	CloudID string
}

// ResolveResult is the outcome of resolving a cloud anchor id.
type ResolveResult struct {
	State  State
	Anchor anchor.Handle
}

// Service is the cloud anchor service client.
type Service interface {
	HostAsync(handle anchor.Handle, ttlDays int) Promise[HostResult]
	ResolveAsync(cloudID string) Promise[ResolveResult]
}

// MinTTLDays and MaxTTLDays bound the lifetime of a hosted anchor.
const (
	MinTTLDays = 1
	MaxTTLDays = 365
)
