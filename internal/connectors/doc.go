// Package connectors holds the clients for remote services that ghfetch
// reads from. Each subpackage implements the driven ports in
// internal/core/ports/driven for one service.
//
// The github subpackage provides the REST client (code search, contents,
// repositories, commits, raw pass-through) and the GraphQL client used for
// batched fetches. Both share the response cache and report ClientStats.
package connectors
