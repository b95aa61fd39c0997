// Package tui is the interactive terminal chat for codesoul.
//
// Ingestion and persona setup run in the background while a spinner shows
// the progress narrative. Answers stream into the history as fragments
// arrive; esc stops the current answer, ctrl+c quits.
package tui
