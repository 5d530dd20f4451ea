// Package handlers provides HTTP request handling
package handlers

// Common error messages
const (
	ErrMsgInvalidReqBody  = "Invalid request body"
	ErrMsgInvalidJobID    = "Invalid job id"
	ErrMsgInvalidStatus   = "Invalid job status"
	ErrMsgInvalidProvider = "Invalid provider"
)

// Job error messages
const (
	ErrMsgJobNotFound     = "Job not found"
	ErrMsgJobGetFailed    = "Failed to get job"
	ErrMsgJobListFailed   = "Failed to list jobs"
	ErrMsgJobTimedOut     = "Job did not complete in time"
	ErrMsgJobFailed       = "Job failed on the provider"
	ErrMsgCompleterFailed = "Failed to reach provider"
)

// Pagination error messages
const (
	ErrMsgNegativePagination = "Page must be a positive number from 1"
)
