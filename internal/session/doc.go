// Package session ties the pipeline together for one indexed root.
//
// A Session is created once per run and holds the open store, the active
// persona and the orchestrator. The expected order is Ingest, then
// InitPersona, then any number of Answer calls; Start runs the first two.
// Questions asked before the persona exists get ErrNotReady in-band.
package session
