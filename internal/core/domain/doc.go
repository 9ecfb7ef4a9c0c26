// Package domain defines the core business entities for ghfetch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - FileRef: The locator of a discovered file (owner, repo, ref, path)
//   - DiscoveredFile / SearchHit: What the enumeration scanner records
//   - ScanProgress: The resumable checkpoint of a scan
//   - ContentStatus, RepoMetadata, FileHistory: Derived per-entity data
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
