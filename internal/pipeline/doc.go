// Package pipeline provides a generic ordered-step workflow engine with
// bounded per-step retry, pause-for-input, cancellation, and duration
// tracking, plus the default step set for a generation session. Pipelines
// run independently; within one pipeline steps execute strictly in order.
package pipeline
