package cfapi

// Outcome is the three-valued success determination for one operation. It is
// an explicit enum rather than a nullable bool so callers must handle the
// uncertain case.
type Outcome uint8

const (
	// OutcomeFailure means the operation is known to have failed.
	OutcomeFailure Outcome = iota
	// OutcomeSuccess means the operation is known to have succeeded.
	OutcomeSuccess
	// OutcomeUncertain means the status code and the body-level success
	// marker contradict each other; the operation may or may not have been
	// applied remotely.
	OutcomeUncertain
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUncertain:
		return "uncertain"
	default:
		return "failure"
	}
}

func statusSuccessful(status int) bool {
	return status >= 200 && status < 300
}

func outcomeFromStatus(status int) Outcome {
	if statusSuccessful(status) {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// classify reduces the HTTP status and the body-level success flag into one
// Outcome. A well-formed body wins over the status code; when integrity
// checking is on and the two disagree, neither is trusted.
func classify(status int, bodySuccess *bool, integrity bool) Outcome {
	if bodySuccess == nil {
		return outcomeFromStatus(status)
	}
	if integrity && *bodySuccess != statusSuccessful(status) {
		return OutcomeUncertain
	}
	if *bodySuccess {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
