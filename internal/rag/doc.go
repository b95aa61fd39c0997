// Package rag answers questions about an indexed codebase.
//
// For each question the Orchestrator retrieves the nearest chunks, lays them
// out as a context block in ranking order, and streams the model's answer:
//
//	for frag := range orch.Answer(ctx, "how are chunks stored?") {
//	    fmt.Print(frag)
//	}
//
// Without a generation credential the answer is a single fragment reporting
// how many snippets were found. Index and model failures end the answer with
// an error fragment; the orchestrator stays usable for the next question.
package rag
