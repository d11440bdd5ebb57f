// Package catalog maps user-facing model display names to provider families
// and backend model identifiers.
package catalog

// Family identifies a backend vendor or runtime.
type Family string

const (
	FamilyClaude      Family = "CLAUDE"
	FamilyOpenAI      Family = "OPENAI"
	FamilyGoogle      Family = "GOOGLE"
	FamilyMistral     Family = "MISTRAL"
	FamilyGroq        Family = "GROQ"
	FamilyOllama      Family = "OLLAMA"
	FamilyLocalServer Family = "LOCAL_SERVER"
)

// MeteredFamilies are the hosted APIs whose usage is billed and therefore
// recorded in the usage ledger.
var MeteredFamilies = map[Family]bool{
	FamilyClaude:  true,
	FamilyOpenAI:  true,
	FamilyGoogle:  true,
	FamilyMistral: true,
	FamilyGroq:    true,
}

// Entry is one selectable model: the display name shown to users and the
// identifier sent to the backend.
type Entry struct {
	DisplayName string
	ModelID     string
}

// Catalog holds the full model table. Built once at startup; immutable
// afterwards. Display names are the lookup key and must be unique across all
// families; a duplicate silently shadows the earlier entry, which is a
// configuration defect rather than a runtime error.
type Catalog struct {
	models map[Family][]Entry
	index  map[string]resolved
}

type resolved struct {
	family  Family
	modelID string
}

func defaultModels() map[Family][]Entry {
	return map[Family][]Entry{
		FamilyClaude: {
			{"Claude 3 Opus", "claude-3-opus-20240229"},
			{"Claude 3 Sonnet", "claude-3-sonnet-20240229"},
			{"Claude 3 Haiku", "claude-3-haiku-20240307"},
			{"Claude 3.5 Sonnet", "claude-3-5-sonnet-20241022"},
		},
		FamilyOpenAI: {
			{"GPT-4o-mini", "gpt-4o-mini"},
			{"GPT-4o", "gpt-4o"},
			{"GPT-4 Turbo", "gpt-4-turbo"},
			{"GPT-3.5 Turbo", "gpt-3.5-turbo-0125"},
		},
		FamilyGoogle: {
			{"Gemini 1.0 Pro", "gemini-pro"},
			{"Gemini 1.5 Flash", "gemini-1.5-flash"},
			{"Gemini 1.5 Pro", "gemini-1.5-pro"},
			{"Gemini 2.0 Flash", "gemini-2.0-flash"},
			{"Gemini 2.5 Pro (Preview 05-06)", "gemini-2.5-pro-preview-05-06"},
		},
		FamilyMistral: {
			{"Mistral 7b", "open-mistral-7b"},
			{"Mistral 8x7b", "open-mixtral-8x7b"},
			{"Mistral Medium", "mistral-medium-latest"},
			{"Mistral Small", "mistral-small-latest"},
			{"Mistral Large", "mistral-large-latest"},
		},
		FamilyGroq: {
			{"LLAMA3 8B", "llama3-8b-8192"},
			{"LLAMA3 70B", "llama3-70b-8192"},
			{"LLAMA2 70B", "llama2-70b-4096"},
			{"Mixtral", "mixtral-8x7b-32768"},
			{"GEMMA 7B", "gemma-7b-it"},
		},
		FamilyOllama: {},
		FamilyLocalServer: {
			{"LM Studio", "local-model"},
		},
	}
}

// New builds a catalog from the default model table plus any locally
// discovered Ollama entries.
func New(ollamaEntries []Entry) *Catalog {
	models := defaultModels()
	models[FamilyOllama] = append(models[FamilyOllama], ollamaEntries...)

	index := make(map[string]resolved)
	for family, entries := range models {
		for _, e := range entries {
			index[e.DisplayName] = resolved{family: family, modelID: e.ModelID}
		}
	}

	return &Catalog{models: models, index: index}
}

// ListModels returns a copy of the full catalog keyed by family.
func (c *Catalog) ListModels() map[Family][]Entry {
	out := make(map[Family][]Entry, len(c.models))
	for family, entries := range c.models {
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		out[family] = cp
	}
	return out
}

// Resolve looks up a display name. The match is exact and case sensitive;
// display names are never normalized.
func (c *Catalog) Resolve(displayName string) (Family, string, bool) {
	r, ok := c.index[displayName]
	if !ok {
		return "", "", false
	}
	return r.family, r.modelID, true
}
