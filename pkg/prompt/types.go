package prompt

// Prompt is a role-play persona from the prompt library.
type Prompt struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Greetings   string `json:"greetings"`
	Category    string `json:"category"`
	Likes       int    `json:"likes"`
	IsEnabled   *bool  `json:"is_enabled,omitempty"`
}

// Query selects a page of the library.
type Query struct {
	Page            int
	Limit           int
	Category        string
	Term            string
	IncludeDisabled bool
}
