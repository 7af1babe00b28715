package recipe

import (
	"encoding/json"
	"fmt"
	"strings"
)

// jsonRecipe is the JSON-backed Recipe implementation.
type jsonRecipe struct {
	doc map[string]any
}

func (r *jsonRecipe) ToJSON() map[string]any {
	return cloneMap(r.doc)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// JSONParser parses JSON-shaped recipe documents ("dub.json",
// "package.json"). It is the bundled default for the Parser contract
// (SPEC_FULL.md §4.L); it does not understand "dub.sdl" — callers needing
// SDL support must supply their own Parser.
type JSONParser struct{}

// Parse implements Parser.
func (JSONParser) Parse(text []byte, filename string) (Recipe, error) {
	if strings.HasSuffix(filename, ".sdl") {
		return nil, fmt.Errorf("recipe: no SDL parser bundled, cannot parse %q", filename)
	}

	var doc map[string]any
	if err := json.Unmarshal(text, &doc); err != nil {
		return nil, fmt.Errorf("recipe: parse %q: %w", filename, err)
	}
	return &jsonRecipe{doc: doc}, nil
}
