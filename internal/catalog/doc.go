// Package catalog turns the raw municipality catalog into region batches.
//
// The flow is Fetch (HTTP or local file), Decode (charset to UTF-8), Parse
// (delimited rows to validated records) and Group (records to per-region
// batches sorted by preferred name). Rows that fail validation are reported
// as ValidationErrors and never reach the derivation pipeline.
package catalog
