// Package core provides the business logic of the municipality hashing
// pipeline.
//
// This package holds all domain logic independent of any transport. The CLI
// and the HTTP server both drive it through [Service].
//
// # Architecture
//
//   - Coordinator: derives the hashes of one region batch on a bounded
//     worker pool and returns them in batch order.
//   - Service: fetches and groups the catalog, then derives and emits each
//     region in turn while recording run history.
//   - RunLimiter: keeps a single writer per output directory.
//   - Verifier: recomputes the hashes stored in a JSON artifact.
//
// # Run Flow
//
//  1. [Service.Run] or [Service.Start] takes the run slot and assigns a run id
//  2. The catalog is fetched, decoded, parsed and grouped by region
//  3. Each region goes through [Coordinator.DeriveBatch] and is emitted as a
//     table and a JSON document
//  4. Region outcomes and the final status go to the history recorder
//
// A failing region aborts the run unless RUN_CONTINUE_ON_ERROR is set.
// Regions emitted before the failure stay on disk.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError]:
//
//   - KDF001-KDF002, DRV001: derivation errors
//   - IO001: artifact write errors
//   - CAT001-CAT003: catalog errors
//   - RUN001-RUN004: run errors (busy, cancelled, timeout, not found)
//   - REG001: region lookup errors
package core
