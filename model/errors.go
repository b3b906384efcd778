package model

import "errors"

var (
	ErrRateLimitReached    = errors.New("RATE_LIMIT_REACHED")
	ErrRateLimiter         = errors.New("RATE_LIMITER_ERROR")
	ErrFetch               = errors.New("FETCH_ERROR")
	ErrInvalidData         = errors.New("INVALID_DATA_FOUND")
	ErrNotFound            = errors.New("NOT_FOUND")
	ErrTransientNetwork    = errors.New("TRANSIENT_NETWORK")
	ErrUpstreamUnavailable = errors.New("UPSTREAM_UNAVAILABLE")
	ErrMissingInput        = errors.New("MISSING_INPUT")
)

type PipelineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e PipelineError) Error() string {
	return e.Code + ": " + e.Message
}

// NewPipelineError maps any stage error to a stable code and a hint for the operator
func NewPipelineError(errReason error) PipelineError {
	switch {
	case errReason == nil:
		return PipelineError{Code: "OK", Message: "stage completed"}

	case errors.Is(errReason, ErrRateLimitReached), errors.Is(errReason, ErrRateLimiter):
		return PipelineError{
			Code:    ErrRateLimitReached.Error(),
			Message: "github rate limit reached. set GITHUB_TOKEN to increase the limit or rerun later, completed snapshots are kept",
		}

	case errors.Is(errReason, ErrUpstreamUnavailable):
		return PipelineError{
			Code:    ErrUpstreamUnavailable.Error(),
			Message: "an upstream source is unreachable. check network access and the configured URLs: " + errReason.Error(),
		}

	case errors.Is(errReason, ErrMissingInput):
		return PipelineError{
			Code:    ErrMissingInput.Error(),
			Message: "an input file of this stage is missing. run the previous stages first: " + errReason.Error(),
		}

	case errors.Is(errReason, ErrInvalidData):
		return PipelineError{
			Code:    ErrInvalidData.Error(),
			Message: "upstream data could not be parsed: " + errReason.Error(),
		}

	case errors.Is(errReason, ErrFetch), errors.Is(errReason, ErrTransientNetwork), errors.Is(errReason, ErrNotFound):
		return PipelineError{
			Code:    ErrFetch.Error(),
			Message: "fetching upstream data failed: " + errReason.Error(),
		}
	}

	return PipelineError{
		Code:    "GENERIC_ERROR",
		Message: errReason.Error(),
	}
}
