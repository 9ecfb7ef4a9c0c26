// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - FileStore, SearchHitStore, ScanProgressStore: Discovery persistence
//   - ContentStatusStore, MetadataStore, HistoryStore: Derived data persistence
//   - ContentStore: Destination directory for fetched file content
//   - ResponseCache: File-backed memoisation of API responses
//   - CodeSearcher, ContentFetcher, MetadataFetcher, HistoryFetcher: REST API
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - BatchFetcher: GraphQL batched fetching. Without it only the singular path is available.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
