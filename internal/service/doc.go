package service

// Package service supervises batch executions on top of the engine.
//
// Overview
// The Supervisor owns the engine instance and the batches declared in the
// configuration. Clients request a start by name (or "**" for all); in
// timer mode a gocron scheduler issues those requests on a cron or
// ISO8601-duration schedule.
//
// Each run executes the batch through the engine, aggregates the results
// into a summary and hands the JSON report to the configured uploaders
// (stdout, a directory, a remote repository).
//
// Invariants:
//   - At most one run loop per Supervisor (Do).
//   - In manual mode the first execution or upload error terminates Do.
//   - In timer mode errors are logged and the loop keeps running.
