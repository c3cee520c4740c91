// Package service wires user generation requests through the dispatcher,
// extractor, and pipeline engine, and persists produced artifacts to the
// key-value store. It is the single entry point the API layer talks to.
package service
