package session

import "fmt"

const (
	CodeValidation       = "VALIDATION"
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeNoSession        = "NO_SESSION"
	CodeResourceFault    = "RESOURCE_FAULT"
	CodeTransientRead    = "TRANSIENT_READ"
	CodeSessionFault     = "SESSION_FAULT"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Fault classifies why an operation did not succeed. Start and Status fold
// faults into their result instead of returning an error.
type Fault string

const (
	FaultNone            Fault = ""
	FaultResource        Fault = "resource_fault"
	FaultTransientRead   Fault = "transient_read_fault"
	FaultLoginRejected   Fault = "login_rejected"
	FaultChallenge       Fault = "challenge_present"
	FaultExtractionEmpty Fault = "extraction_empty"
	FaultSession         Fault = "session_fault"
)
