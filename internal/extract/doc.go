// Package extract turns raw generated markup into typed artifacts. It is
// pure and deterministic: identical input always yields identical output,
// with no network access or randomness. Malformed markup is parsed
// best-effort, never rejected.
package extract
