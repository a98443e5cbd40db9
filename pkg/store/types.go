package store

import (
	"encoding/json"
)

// AiMode selects which backend conversational pipeline a session uses.
type AiMode string

const (
	ModeMyFavorites   AiMode = "myfavorites"   // Role-play over saved prompts
	ModeAdmin         AiMode = "admin"         // Admin panel, local only
	ModeKnowledgeBase AiMode = "knowledgebase" // Umbrella for retrieval modes
	ModeLocalAI       AiMode = "localai"       // Local vector knowledge base
	ModeChatLLM       AiMode = "chatllm"       // Unified multi-model chat
	ModeDigitalPerson AiMode = "digitalperson"
	ModeTextToImage   AiMode = "texttoimage"
)

// Modes lists every known AiMode.
var Modes = []AiMode{
	ModeMyFavorites, ModeAdmin, ModeKnowledgeBase, ModeLocalAI,
	ModeChatLLM, ModeDigitalPerson, ModeTextToImage,
}

// Valid reports whether m is a known mode.
func (m AiMode) Valid() bool {
	for _, v := range Modes {
		if v == m {
			return true
		}
	}
	return false
}

// HistoryModes returns the modes whose sessions are listed under m.
// KnowledgeBase is a client-side umbrella; its sessions are stored as LocalAI.
func (m AiMode) HistoryModes() []AiMode {
	if m == ModeKnowledgeBase {
		return []AiMode{ModeLocalAI}
	}
	return []AiMode{m}
}

// Role defines the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Key identifies a session. It is unique within the history list and
// stable for the session's lifetime.
type Key int64

// Pending addresses a session that has not been persisted yet: message
// operations given Pending act on the first message list, ignoring keys.
const Pending Key = 0

// DefaultTitle is the placeholder title of a fresh session.
const DefaultTitle = "New Chat"

// Session is one entry of the history list.
type Session struct {
	Key             Key    `json:"uuid"`
	Title           string `json:"title"`
	ID              string `json:"id,omitempty"` // Backend id, set once persisted remotely
	UserID          string `json:"user_id,omitempty"`
	AiMode          AiMode `json:"ai_mode,omitempty"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
	AssistantID     string `json:"assistant_id,omitempty"`
	ThreadID        string `json:"thread_id,omitempty"`
	Icon            string `json:"icon,omitempty"`
	Description     string `json:"description,omitempty"`
	Greetings       string `json:"greetings,omitempty"`
	Meta            string `json:"meta,omitempty"`
	IsEdit          bool   `json:"isEdit"`
}

// SessionPatch carries the fields of a local history edit. Nil fields are left unchanged.
type SessionPatch struct {
	Title           *string
	IsEdit          *bool
	Meta            *string
	KnowledgeBaseID *string
	Icon            *string
	Description     *string
	Greetings       *string
}

// SessionRef names a remote session to delete, by backend id or, failing that, by title.
// Key, when set, selects the local message list to clear.
type SessionRef struct {
	ID    string
	Title string
	Key   Key
}

// RequestOptions records what produced a message so it can be regenerated.
type RequestOptions struct {
	Prompt  string          `json:"prompt"`
	Options json.RawMessage `json:"options,omitempty"` // Opaque conversation options
}

// Message is one entry of a session's ordered message list.
type Message struct {
	Timestamp      string         `json:"dateTime"` // Display string, not parsed
	Text           string         `json:"text"`
	Role           Role           `json:"role,omitempty"`
	Error          bool           `json:"error,omitempty"`
	Loading        bool           `json:"loading,omitempty"`
	RequestOptions RequestOptions `json:"requestOptions"`
}

// MessagePatch shallow-merges into a message. Nil fields are left unchanged.
type MessagePatch struct {
	Text    *string
	Role    *Role
	Error   *bool
	Loading *bool
}

// Apply returns m with the patch merged in.
func (p MessagePatch) Apply(m Message) Message {
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.Role != nil {
		m.Role = *p.Role
	}
	if p.Error != nil {
		m.Error = *p.Error
	}
	if p.Loading != nil {
		m.Loading = *p.Loading
	}
	return m
}

// Conversation pairs a session key with its messages.
type Conversation struct {
	Key      Key       `json:"uuid"`
	Messages []Message `json:"data"`
}

// ModelMessage is the {role, content} projection sent upstream as context.
type ModelMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the persisted form of the session store.
type State struct {
	Active        Key            `json:"active"` // Zero when history is empty
	History       []Session      `json:"history"`
	Chat          []Conversation `json:"chat"`
	AiMode        AiMode         `json:"aiMode"`
	Prompt        string         `json:"prompt,omitempty"`
	SelectedModel string         `json:"selectedModel"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.History != nil {
		out.History = append([]Session(nil), s.History...)
	}
	if s.Chat != nil {
		out.Chat = make([]Conversation, len(s.Chat))
		for i, c := range s.Chat {
			out.Chat[i] = Conversation{Key: c.Key, Messages: cloneMessages(c.Messages)}
		}
	}
	return out
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.RequestOptions.Options != nil {
			m.RequestOptions.Options = append(json.RawMessage(nil), m.RequestOptions.Options...)
		}
		out[i] = m
	}
	return out
}
