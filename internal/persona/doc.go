// Package persona gives the codebase a voice.
//
// The index size picks a tier (reserved, energetic or weary). Initialize asks
// the generative model for a JSON persona in that tier and checks it against
// a JSON Schema; anything unusable falls back to a scripted persona, so a
// session always has a system prompt.
package persona
