// Package api exposes the job processor over HTTP. Handlers translate
// requests into processor and chapter service calls, map domain errors to
// status codes in one place, and render job records as snake_case JSON.
package api
