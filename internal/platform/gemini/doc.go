// Package gemini adapts Google's Gemini API to the dispatch.Provider
// interface, normalizing its responses and failure modes into the
// dispatcher's canonical shapes.
package gemini
