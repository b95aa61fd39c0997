// Package llm is the generative model client.
//
// OpenAIClient speaks the OpenAI chat protocol through langchaingo and
// defaults to DeepSeek. Without an API key New returns Unavailable, whose
// calls fail with types.ErrGenerationUnavailable so callers can degrade
// instead of erroring.
//
// Stream returns a pull iterator; stopping the range loop cancels the
// underlying request:
//
//	for frag, err := range client.Stream(ctx, msgs) {
//	    if err != nil {
//	        return err // *types.GenerationFailure
//	    }
//	    fmt.Print(frag)
//	}
package llm
