// Package gemini provides an implementation of the generation.Generator interface
// that uses Google's Gemini API for writing book chapters.
//
// The Generator renders a prompt from a text template, asks the model for a
// JSON object, and converts that object into a generation.Chapter. Calls are
// rate limited, and transient API failures are retried with exponential
// backoff and jitter. Safety blocks and malformed responses are permanent and
// returned immediately.
package gemini
