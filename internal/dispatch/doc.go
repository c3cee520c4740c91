// Package dispatch executes generation calls against an ordered list of
// external providers with failure classification and fallback. It owns the
// streaming chunk decoder that reassembles event-stream responses and the
// normalization applied to accumulated output before extraction.
package dispatch
