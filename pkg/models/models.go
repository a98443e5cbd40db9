// Package models is the catalog of chat models the backend can serve.
package models

import (
	"context"
	"slices"
)

// Model is one selectable chat model.
type Model struct {
	// Name is the identifier sent to the backend.
	Name  string `json:"name"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
	// PremiumOnly models are unavailable on the normal tier.
	PremiumOnly bool `json:"premium_only,omitempty"`
}

// Choice is a model as offered to a particular user.
type Choice struct {
	Model
	Disabled bool `json:"disabled"`
}

// DefaultModel is used before the user picks one.
const DefaultModel = "gpt-3.5-turbo"

var catalog = []Model{
	{Name: "claude-3-sonnet-20240229", Label: "Claude 3 Sonnet", Icon: "logos:anthropic-icon"},
	{Name: "claude-3-opus-20240229", Label: "Claude 3 Opus", Icon: "logos:anthropic-icon"},
	{Name: "qwen-turbo", Label: "Qwen Turbo", Icon: "logos:turbopack-icon"},
	{Name: "qwen-plus", Label: "Qwen Plus", Icon: "icon-park:plus-cross"},
	{Name: "qwen-max", Label: "Qwen Max", Icon: "logos:mixmax"},
	{Name: "gemini-pro", Label: "Gemini Pro", Icon: "simple-icons:googlegemini"},
	{Name: "hf/google/gemma-2b-it", Label: "Hugging Face Gemma 2B", Icon: "openmoji:hugging-face"},
	{Name: "hf/google/gemma-7b-it", Label: "Hugging Face Gemma 7B", Icon: "openmoji:hugging-face"},
	{Name: "mistralai/Mistral-7B-Instruct-v0.1", Label: "Mistral 7B", Icon: "logos:mistral-ai-icon"},
	{Name: "mistralai/Mixtral-8x7B-Instruct-v0.1", Label: "Mixtral 8x7B", Icon: "logos:mistral-ai-icon", PremiumOnly: true},
	{Name: "moonshot-v1-8k", Label: "Moonshot 8K", Icon: "solar:moon-fog-bold"},
	{Name: "moonshot-v1-32k", Label: "Moonshot 32K", Icon: "solar:moon-fog-bold"},
	{Name: "moonshot-v1-128k", Label: "Moonshot 128K", Icon: "solar:moon-fog-bold", PremiumOnly: true},
	{Name: "azure-jp-gpt3", Label: "Azure GPT-3.5 Turbo", Icon: "devicon:azure"},
	{Name: "gpt-3.5-turbo-1106", Label: "GPT-3.5 Turbo 1106", Icon: "logos:openai-icon"},
	{Name: "gpt-3.5-turbo-0125", Label: "GPT-3.5 Turbo 0125", Icon: "logos:openai-icon"},
	{Name: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo", Icon: "logos:openai-icon"},
	{Name: "gpt-3.5-turbo-16k", Label: "GPT-3.5 Turbo 16k", Icon: "logos:openai-icon"},
	{Name: "gpt-4o", Label: "GPT-4o", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4-turbo", Label: "GPT-4 Turbo", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4-turbo-2024-04-09", Label: "GPT-4 Turbo 2024-04-09", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4-0125-preview", Label: "GPT-4 0125 Preview", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4-1106-preview", Label: "GPT-4 1106 Preview", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4", Label: "GPT-4", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4-32k", Label: "GPT-4 32k", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4-0613", Label: "GPT-4 0613", Icon: "logos:openai-icon", PremiumOnly: true},
	{Name: "gpt-4-32k-0613", Label: "GPT-4 32k 0613", Icon: "logos:openai-icon", PremiumOnly: true},
}

// All returns the full catalog in display order.
func All() []Model {
	return slices.Clone(catalog)
}

// Find looks a model up by name.
func Find(name string) (Model, bool) {
	i := slices.IndexFunc(catalog, func(m Model) bool { return m.Name == name })
	if i == -1 {
		return Model{}, false
	}
	return catalog[i], true
}

// ModelProvider lists the models a user may choose.
type ModelProvider interface {
	List(ctx context.Context) ([]string, error)
}

// Tier reports whether the current user is on the normal tier.
type Tier interface {
	IsNormal() bool
}

// Catalog offers the models according to the current user's tier.
type Catalog struct {
	tier Tier
}

var _ ModelProvider = (*Catalog)(nil)

func NewCatalog(tier Tier) *Catalog {
	return &Catalog{tier: tier}
}

// Choices returns every model, disabling premium ones for normal users.
func (c *Catalog) Choices() []Choice {
	normal := c.tier != nil && c.tier.IsNormal()
	out := make([]Choice, len(catalog))
	for i, m := range catalog {
		out[i] = Choice{Model: m, Disabled: m.PremiumOnly && normal}
	}
	return out
}

// List returns the names of the enabled models.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	var names []string
	for _, ch := range c.Choices() {
		if !ch.Disabled {
			names = append(names, ch.Name)
		}
	}
	return names, nil
}

// Allowed reports whether name is in the catalog and enabled for the user.
func (c *Catalog) Allowed(name string) bool {
	m, ok := Find(name)
	if !ok {
		return false
	}
	return !(m.PremiumOnly && c.tier != nil && c.tier.IsNormal())
}
