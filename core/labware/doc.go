// Package labware defines the document model shared by every workbench
// subsystem: samples, their two-stage method pipelines, well locations, and
// the backend-owned status overlay and task records.
//
// The types mirror the JSON documents exchanged with the liquid-handler
// backend. Values are plain data with no synchronization; callers that share
// a document across goroutines clone it first.
package labware
