package knowledge

// Base is a backend-managed document collection.
type Base struct {
	ID                 string `json:"id,omitempty"`
	UserID             string `json:"user_id,omitempty"`
	Name               string `json:"name"`
	Icon               string `json:"icon"`
	Description        string `json:"description"`
	IsGlobal           bool   `json:"is_global,omitempty"`
	UsePlugins         string `json:"use_plugins,omitempty"`
	AssistantID        string `json:"assistant_id,omitempty"`
	FileIDs            string `json:"file_ids,omitempty"` // Comma separated
	UseCodeInterpreter bool   `json:"use_code_interpreter,omitempty"`
	UseRetrieval       bool   `json:"use_retrieval,omitempty"`
	Type               string `json:"type,omitempty"`
	ParentNodeToken    string `json:"parent_node_token,omitempty"`
	SpaceID            string `json:"space_id,omitempty"`
}

// Kinds of knowledge base.
const (
	KindLocalAI          = "localai"
	KindOpenAIAssistants = "openaiassistants"
	KindFeishuRAG        = "feishu_rag"
)

// DocRecord is one document ingested into a knowledge base.
type DocRecord struct {
	ID              string `json:"id,omitempty"`
	Filename        string `json:"filename"`
	DocID           string `json:"doc_id"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
}

// Plugin is an installed or installable retrieval plugin.
type Plugin struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	AuthorName  string `json:"author_name"`
	AuthorURL   string `json:"author_url"`
	Description string `json:"description"`
	PluginURL   string `json:"plugin_url"`
	Tags        string `json:"tags"`
	Thumb       string `json:"thumb"`
	Version     string `json:"version"`
}

// CorePlugin is always active and hidden from the active list.
const CorePlugin = "core_plugin"

// BaseQuery selects a page of knowledge bases.
type BaseQuery struct {
	Page  int
	Limit int
	Term  string
	Kind  string
}

// DocQuery selects a page of documents of one knowledge base.
type DocQuery struct {
	Page            int
	Limit           int
	KnowledgeBaseID string
	Term            string
}
