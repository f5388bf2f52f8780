package domain

import "errors"

var (
	// ErrFetch marks a source whose transcripts could not be obtained.
	ErrFetch = errors.New("fetch failed")
	// ErrExtraction marks a model response that does not describe news items.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmbedding marks a failed or inconsistent embedding batch. It aborts the run.
	ErrEmbedding = errors.New("embedding failed")
	// ErrSynthesis marks a cluster whose post could not be written.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrPublishing marks a post that could not reach its sink.
	ErrPublishing = errors.New("publishing failed")
)
