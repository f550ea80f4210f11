package anchor

import "fmt"

// Status is the cloud state an anchor provider reports for a handle.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	ErrorInternal
	ErrorNotAuthorized
	ErrorServiceUnavailable
	ErrorResourceExhausted
	ErrorHostingDatasetProcessingFailed
	ErrorCloudIDNotFound
	ErrorSDKVersionTooOld
	ErrorSDKVersionTooNew
)

func (s Status) IsError() bool { return s >= ErrorInternal }

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "TASK_IN_PROGRESS"
	case StatusSuccess:
		return "SUCCESS"
	case ErrorInternal:
		return "ERROR_INTERNAL"
	case ErrorNotAuthorized:
		return "ERROR_NOT_AUTHORIZED"
	case ErrorServiceUnavailable:
		return "ERROR_SERVICE_UNAVAILABLE"
	case ErrorResourceExhausted:
		return "ERROR_RESOURCE_EXHAUSTED"
	case ErrorHostingDatasetProcessingFailed:
		return "ERROR_HOSTING_DATASET_PROCESSING_FAILED"
	case ErrorCloudIDNotFound:
		return "ERROR_CLOUD_ID_NOT_FOUND"
	case ErrorSDKVersionTooOld:
		return "ERROR_RESOLVING_SDK_VERSION_TOO_OLD"
	case ErrorSDKVersionTooNew:
		return "ERROR_RESOLVING_SDK_VERSION_TOO_NEW"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Handle is a provider anchor. Status must not block; CloudID is only
// meaningful once Status reports success for a hosted anchor, or from the
// start for a resolving one.
type Handle interface {
	Status() Status
	CloudID() string
	Detach()
}

// StatusError carries a provider error status as a Go error.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string { return "cloud anchor: " + e.Status.String() }
