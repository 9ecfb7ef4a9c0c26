// Package github implements the GitHub API clients used to enumerate and
// fetch files.
//
// # Architecture
//
// Two clients share the same building blocks:
//
//   - Client: REST access over go-github (code search, contents, repository
//     metadata, commit history, raw pass-through calls)
//   - GraphQLClient: GraphQL access, including batched queries that fetch many
//     files or repositories per round trip
//
// Every request goes through a [RateLimiter] and the retry driver in
// [retry.Do]. Responses are memoised in a [driven.ResponseCache]; terminal
// misses are cached as sentinel payloads of the form {"error": "not_found"}.
//
// # Authentication
//
// Both clients authenticate with a static token (personal access token or
// OAuth access token) through an oauth2 transport.
//
// # Rate Limiting
//
// Each client paces itself with its own limiter:
//
//  1. Proactive throttling: a token bucket without bursting. REST defaults to
//     1.3 requests per second (about 4,680 per hour, under the 5,000 limit).
//     GraphQL defaults to 30 queries per second.
//
//  2. Reactive handling: X-RateLimit-* headers are tracked per resource
//     (core, search, graphql). An exhausted resource blocks until its reset.
//
//  3. Shared pauses: when a response is rate limited, the wait is applied to
//     the limiter so every concurrent caller pauses, not only the one that
//     saw the response.
//
// Rate-limit waits never count against the retry budget. Server errors and
// network failures back off exponentially and do count.
//
// # Batching
//
// [GraphQLClient.FetchContentBatch], [GraphQLClient.FetchMetadataBatch] and
// [GraphQLClient.FetchHistoryBatch] build one aliased query per batch. Items
// are grouped by repository (and by ref for history), and the response is
// mapped back to the inputs by walking the same alias plan.
package github
