// Package types defines the shared data model for the tomes library:
// books, chapters, chunks, concepts, typed relationships, scored retrieval
// candidates, and the request/response contracts of the retrieval engine.
//
// Everything here is a plain value type with no behavior beyond
// validation and formatting, so every other package can depend on it
// without cycles.
package types
