// Package services implements the driving port interfaces.
// Services contain the core collection logic and orchestrate
// calls to driven ports (adapters).
//
// DiscoveryService enumerates files through the adaptive size-range
// scan. ContentService, MetadataService and HistoryService fetch data for
// what discovery found, each over a singular REST path or a batched
// GraphQL path. Every fetch service persists in bulk and keeps the
// outcomes gathered so far when its context is cancelled.
package services
