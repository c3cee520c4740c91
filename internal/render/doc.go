// Package render schedules artifact preview renders. Repeated requests for
// the same artifact id are debounced into one execution, a global bound
// caps simultaneous renders across all jobs, component sources are
// syntax-checked before execution, and render failures are classified with
// remediation suggestions.
package render
