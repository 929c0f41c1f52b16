// Package catalog is the static registry of integrable AI providers. It maps
// the identifiers the admin API uses to the stable ids the console keys
// everything by, and carries the display metadata for each provider.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// ID is a stable frontend provider id.
type ID string

const (
	OpenAI     ID = "openai"
	Anthropic  ID = "anthropic"
	Gemini     ID = "gemini"
	Veo        ID = "veo"
	Mistral    ID = "mistral"
	DeepSeek   ID = "deepseek"
	Groq       ID = "groq"
	XAI        ID = "xai"
	Perplexity ID = "perplexity"
	Cohere     ID = "cohere"
	OpenRouter ID = "openrouter"
)

// Entry is one row of the catalog table. Backend is the canonical name the
// admin API understands; Aliases are other spellings the API has used for
// the same provider.
type Entry struct {
	ID          ID
	Backend     string
	Aliases     []string
	Name        string
	Icon        string
	Description string
	APIKeyLabel string
}

// Gemini and Veo share the "google" backend provider and therefore the same
// key. ResolveFrontendID returns Gemini, the first row for that backend.
var entries = [...]Entry{
	{ID: OpenAI, Backend: "openai", Aliases: []string{"open-ai", "chatgpt"}, Name: "OpenAI", Icon: "openai.svg", Description: "GPT models, embeddings and image generation.", APIKeyLabel: "OpenAI API key"},
	{ID: Anthropic, Backend: "anthropic", Aliases: []string{"claude"}, Name: "Anthropic", Icon: "anthropic.svg", Description: "Claude family of models.", APIKeyLabel: "Anthropic API key"},
	{ID: Gemini, Backend: "google", Aliases: []string{"gemini", "google-ai", "google-gemini"}, Name: "Google Gemini", Icon: "gemini.svg", Description: "Gemini models through Google AI Studio.", APIKeyLabel: "Google AI Studio key"},
	{ID: Veo, Backend: "google", Name: "Google Veo", Icon: "veo.svg", Description: "Video generation through Google AI Studio.", APIKeyLabel: "Google AI Studio key"},
	{ID: Mistral, Backend: "mistral", Aliases: []string{"mistral-ai", "mistralai"}, Name: "Mistral AI", Icon: "mistral.svg", Description: "Mistral and Codestral models.", APIKeyLabel: "Mistral API key"},
	{ID: DeepSeek, Backend: "deepseek", Name: "DeepSeek", Icon: "deepseek.svg", Description: "DeepSeek chat and reasoning models.", APIKeyLabel: "DeepSeek API key"},
	{ID: Groq, Backend: "groq", Name: "Groq", Icon: "groq.svg", Description: "Low-latency inference for open models.", APIKeyLabel: "Groq API key"},
	{ID: XAI, Backend: "xai", Aliases: []string{"x-ai", "grok"}, Name: "xAI", Icon: "xai.svg", Description: "Grok models.", APIKeyLabel: "xAI API key"},
	{ID: Perplexity, Backend: "perplexity", Aliases: []string{"perplexity-ai"}, Name: "Perplexity", Icon: "perplexity.svg", Description: "Search-grounded Sonar models.", APIKeyLabel: "Perplexity API key"},
	{ID: Cohere, Backend: "cohere", Name: "Cohere", Icon: "cohere.svg", Description: "Command models and rerankers.", APIKeyLabel: "Cohere API key"},
	{ID: OpenRouter, Backend: "openrouter", Aliases: []string{"open-router"}, Name: "OpenRouter", Icon: "openrouter.svg", Description: "Unified routing across model vendors.", APIKeyLabel: "OpenRouter API key"},
}

var (
	byID      map[ID]*Entry
	byBackend map[string][]ID
)

func init() {
	if err := buildIndex(entries[:]); err != nil {
		panic(err)
	}
}

// buildIndex validates the table and fills the lookup maps. A frontend id may
// appear once; a backend name or alias may only point at rows that share the
// same canonical backend.
func buildIndex(rows []Entry) error {
	ids := make(map[ID]*Entry, len(rows))
	backends := make(map[string][]ID, len(rows))
	owner := make(map[string]string)

	for i := range rows {
		e := &rows[i]
		if e.ID == "" || strings.TrimSpace(e.Backend) == "" {
			return fmt.Errorf("catalog: row %d is missing an id or backend", i)
		}
		if _, dup := ids[e.ID]; dup {
			return fmt.Errorf("catalog: duplicate frontend id %q", e.ID)
		}
		ids[e.ID] = e

		canonical := normalize(e.Backend)
		for _, name := range append([]string{e.Backend}, e.Aliases...) {
			key := normalize(name)
			if prev, ok := owner[key]; ok && prev != canonical {
				return fmt.Errorf("catalog: backend name %q maps to both %q and %q", name, prev, canonical)
			}
			owner[key] = canonical
			if !containsID(backends[key], e.ID) {
				backends[key] = append(backends[key], e.ID)
			}
		}
	}

	byID = ids
	byBackend = backends
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func containsID(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ResolveFrontendID maps a backend name or slug to the primary frontend id.
// Unknown names map to themselves so catalog drift does not break lookups;
// Metadata reports whether the result is displayable.
func ResolveFrontendID(backendName string) string {
	if ids := byBackend[normalize(backendName)]; len(ids) > 0 {
		return string(ids[0])
	}
	return strings.TrimSpace(backendName)
}

// ResolveFrontendIDs returns every frontend id that shares the backend
// provider, in table order. Unknown names yield a single identity id.
func ResolveFrontendIDs(backendName string) []string {
	ids := byBackend[normalize(backendName)]
	if len(ids) == 0 {
		if v := strings.TrimSpace(backendName); v != "" {
			return []string{v}
		}
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// ResolveBackendName maps a frontend id to the name the admin API expects.
func ResolveBackendName(frontendID string) (string, bool) {
	e, ok := byID[ID(frontendID)]
	if !ok {
		return "", false
	}
	return e.Backend, true
}

// Metadata returns the catalog row for a frontend id.
func Metadata(frontendID string) (Entry, bool) {
	e, ok := byID[ID(frontendID)]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Aliases = append([]string(nil), e.Aliases...)
	return out, true
}

// IDs returns all frontend ids, sorted.
func IDs() []string {
	out := make([]string, 0, len(byID))
	for id := range byID {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

// DisplayName returns the provider's display name, or the id itself when it
// is not in the catalog.
func DisplayName(frontendID string) string {
	if e, ok := byID[ID(frontendID)]; ok {
		return e.Name
	}
	return frontendID
}
