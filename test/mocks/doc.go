// Package mocks provides mock implementations of the job protocol interfaces.
//
// Each mock follows these principles:
//  1. Implements the same interface as the real component
//  2. Provides configurable behavior through function fields
//  3. Includes helper constructors for common testing scenarios
//
// Example usage:
//
//	query := mocks.NewSequenceStatusQuery(
//		&job.Record{Status: job.StatusInProgress},
//		&job.Record{Status: job.StatusSucceeded, Result: json.RawMessage(`"foo"`)},
//	)
//	completer := job.NewCompleter(query, job.WithPollConfig(fastPoll))
package mocks
