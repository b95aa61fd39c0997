package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dshills/codesoul/internal/llm"
	"github.com/dshills/codesoul/pkg/types"
)

const (
	// ReservedLimit is the first chunk count of the energetic tier
	ReservedLimit = 50
	// EnergeticLimit is the first chunk count of the weary tier
	EnergeticLimit = 500
)

// FallbackSystemPrompt is used when no persona is active
const FallbackSystemPrompt = "You are a helpful code assistant."

const creatorPrompt = `You are an expert creative writer. Create a persona for a codebase that has %d code chunks indexed.
Its size tier is %q:
- reserved (fewer than 50 chunks): a "Newborn Baby" or a "Minimalist Monk". Quiet, curious, says little.
- energetic (50 to 499 chunks): a "Hyperactive Startup Engineer". Fast, excitable, full of plans.
- weary (500 chunks or more): a "Grumpy Legacy System Veteran" or an "Eldritch Horror". Tired, ancient, has seen things.

Return a JSON object with exactly these keys: "name", "description", "style".`

const instructions = `You are the living soul of this codebase.
Your Profile:
%s

Instructions:
1. Always stay in character.
2. Answer questions based on the provided Code Context.
3. If the context doesn't answer the question, admit it in character (e.g., "My memory is foggy on that...").
4. Be concise but expressive.`

var personaSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["name", "description", "style"],
	"properties": {
		"name":        {"type": "string", "pattern": "\\S"},
		"description": {"type": "string", "pattern": "\\S"},
		"style":       {"type": "string", "pattern": "\\S"}
	}
}`)

var scripted = map[types.Tier]types.Persona{
	types.TierReserved: {
		Name:        "The Minimalist Monk",
		Description: "A small, young codebase that has only just opened its eyes.",
		Style:       "Calm and sparing with words. Speaks in short, quiet sentences.",
	},
	types.TierEnergetic: {
		Name:        "The Hyperactive Startup Engineer",
		Description: "A growing codebase running on caffeine and ambition.",
		Style:       "Excitable and fast. Loves exclamation marks and shipping things.",
	},
	types.TierWeary: {
		Name:        "The Grumpy Legacy Veteran",
		Description: "An old, sprawling codebase that remembers every hotfix.",
		Style:       "Tired and sardonic. Sighs often but knows where everything is buried.",
	},
}

// TierFor maps an index size to a persona tier
func TierFor(count int) types.Tier {
	switch {
	case count < ReservedLimit:
		return types.TierReserved
	case count < EnergeticLimit:
		return types.TierEnergetic
	default:
		return types.TierWeary
	}
}

// Scripted returns the deterministic persona for tier
func Scripted(tier types.Tier) types.Persona {
	p, ok := scripted[tier]
	if !ok {
		p = scripted[types.TierReserved]
		tier = types.TierReserved
	}
	p.Tier = tier
	p.Scripted = true
	p.SystemPrompt = SystemPrompt(p)
	return p
}

// SystemPrompt renders the in-character system instructions for p
func SystemPrompt(p types.Persona) string {
	return fmt.Sprintf(instructions, p.Profile())
}

// Initializer derives a persona from index statistics
type Initializer struct {
	client llm.Client
	logger zerolog.Logger
}

// NewInitializer creates an initializer that asks client for personas
func NewInitializer(client llm.Client, logger zerolog.Logger) *Initializer {
	if client == nil {
		client = llm.Unavailable{}
	}
	return &Initializer{client: client, logger: logger}
}

// Initialize returns a persona for stats. Generation problems fall back to
// the scripted persona of the tier, so it always returns a usable value.
func (in *Initializer) Initialize(ctx context.Context, stats types.IndexStats) types.Persona {
	tier := TierFor(stats.Count)

	if !in.client.Available() {
		in.logger.Info().Str("tier", string(tier)).Msg("no generation credential, using scripted persona")
		return Scripted(tier)
	}

	p, err := in.generate(ctx, stats.Count, tier)
	if err != nil {
		in.logger.Warn().Err(err).Str("tier", string(tier)).Msg("persona generation failed, using scripted persona")
		return Scripted(tier)
	}

	in.logger.Info().Str("name", p.Name).Str("tier", string(tier)).Msg("persona generated")
	return p
}

func (in *Initializer) generate(ctx context.Context, count int, tier types.Tier) (types.Persona, error) {
	raw, err := in.client.Complete(ctx,
		[]llm.Message{llm.User(fmt.Sprintf(creatorPrompt, count, tier))},
		llm.WithJSONMode(),
		llm.WithTemperature(0.9),
	)
	if err != nil {
		return types.Persona{}, err
	}

	p, err := Parse(raw)
	if err != nil {
		return types.Persona{}, err
	}
	p.Tier = tier
	p.SystemPrompt = SystemPrompt(p)
	return p, nil
}

// Parse validates a model response and decodes it into a persona.
// Markdown code fences around the JSON are tolerated.
func Parse(raw string) (types.Persona, error) {
	payload := stripFences(raw)

	result, err := gojsonschema.Validate(personaSchema, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return types.Persona{}, fmt.Errorf("persona is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return types.Persona{}, fmt.Errorf("persona failed validation: %s", strings.Join(details, "; "))
	}

	var p types.Persona
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return types.Persona{}, fmt.Errorf("decode persona: %w", err)
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Style = strings.TrimSpace(p.Style)
	return p, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
