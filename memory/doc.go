// Package memory defines the core data model and collaborator interfaces for
// the synchronization-and-retrieval engine, plus the profile assembler built
// on top of them.
//
// Two stores hold memories. The source of truth is a slow, authoritative
// service that extracts and rewrites raw conversational input into canonical
// memory text. The vector index is a fast local store mirroring processed
// records for low-latency similarity search. The index copy is best effort:
// it may lag behind the source or be missing records whose sync failed, but
// its text is never rewritten independently.
//
// Architecture:
//   - Source: authoritative store client (submit raw input, fetch, search)
//   - Index: vector index (multi-vector upsert/search, user enumeration)
//   - Tagger: semantic tag generation (heuristic, remote, or LLM backed)
//   - Embedder: text-to-vector conversion, treated as an opaque function
//   - Assembler: blends cached stable traits with fresh contextual search
//     into a domain-scoped participant profile
//
// Synchronization between the two stores lives in package syncer; the HTTP
// surface lives in package server.
package memory
