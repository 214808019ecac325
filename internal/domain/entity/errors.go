package entity

import "errors"

// Standard domain errors
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded: too many tokens used")
	ErrInternalServer    = errors.New("an internal error occurred")
	ErrInvalidRequest    = errors.New("invalid request parameters")
	ErrResourceNotFound  = errors.New("the requested resource was not found")
	ErrUnauthorized      = errors.New("user not authenticated")
)

// Pipeline errors
var (
	// ErrProvider covers non-2xx responses and network failures from the LLM or catalog APIs.
	ErrProvider = errors.New("upstream provider error")
	// ErrMalformedModelOutput is returned when the model output is not the expected JSON shape.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrAuthentication means the catalog login failed and no token is available.
	ErrAuthentication = errors.New("catalog authentication failed")
	// ErrRecommendationGenerationFailed is terminal: every attempt failed.
	ErrRecommendationGenerationFailed = errors.New("recommendation generation failed")
	// ErrEmptyCompletion is returned when the model answers with no content.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrQueryLimitReached is returned once a session holds the maximum number of user messages.
	ErrQueryLimitReached = errors.New("query limit reached for this session")
	// ErrStaleResult marks a result that finished after the session was started over.
	ErrStaleResult = errors.New("session changed while request was in flight")
)
