package types

// Tier buckets an index by size; it steers the persona's character
type Tier string

const (
	TierReserved  Tier = "reserved"  // fewer than 50 chunks
	TierEnergetic Tier = "energetic" // 50 to 499 chunks
	TierWeary     Tier = "weary"     // 500 chunks or more
)

// Persona is the conversational voice layered onto the model's system prompt.
// It is derived once per session and never persisted.
type Persona struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Style       string `json:"style"`

	Tier         Tier   `json:"-"`
	SystemPrompt string `json:"-"`
	Scripted     bool   `json:"-"` // true when the fallback persona was used
}

// Profile renders the persona as the "Name/Description/Style" block
func (p Persona) Profile() string {
	return "Name: " + p.Name + "\nDescription: " + p.Description + "\nStyle: " + p.Style
}
