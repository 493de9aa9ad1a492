// Package events provides types and interfaces for job lifecycle events.
//
// The job processor publishes a JobEvent whenever a job changes state. Other
// components (metrics, logging, future notification hooks) subscribe by
// registering an EventHandler with an EventEmitter, so the processor never
// needs to know who is listening.
//
// The primary components are:
// - JobEvent: a single state change of one job
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
package events
