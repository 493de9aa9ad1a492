// Package chapter binds chapter generation to the job processor. It supplies
// the work function a chapter job runs and a small service the HTTP layer
// uses to start one.
package chapter
