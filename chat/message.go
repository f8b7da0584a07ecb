// Package chat implements the unified message and request model of spec §3:
// ChatMessage (fluent multi-role builder with ${binding} rendering) and
// ChatRequest/EmbeddingRequest (the provider-agnostic envelope every
// Service implementation consumes). It generalizes the teacher package's
// message.go (System/User/Assistant constructors) and adapter.go's
// CompletionRequest/CompletionResponse into the richer shape spec §3
// requires (structured multi-part content, bindings, headers, tenancy).
package chat

import (
	"regexp"
	"strings"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

func validRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleDeveloper:
		return true
	default:
		return false
	}
}

// PartType identifies the kind of a structured content part.
type PartType string

const (
	PartText     PartType = "text"
	PartImage    PartType = "image"
	PartAudio    PartType = "audio"
	PartDocument PartType = "document"
)

// Part is one element of a structured, multi-part message body.
type Part struct {
	Type     PartType
	Text     string
	URL      string // for image/audio/document parts supplied by reference
	Data     []byte // for image/audio/document parts supplied inline
	MimeType string
}

// ToolCall is a request from the model to invoke a named tool.
type ToolCall struct {
	ID        string
	Type      string // always "function" today
	Name      string
	Arguments string // raw JSON arguments, passed through from the provider
}

// Message is a single entry in a ChatMessage conversation. Content is
// either a plain string (Text non-empty, Parts nil) or a structured
// multi-part body (Parts non-empty).
type Message struct {
	Role       Role
	Text       string
	Parts      []Part
	ToolCalls  []ToolCall // populated on assistant messages requesting tools
	ToolCallID string     // populated on tool-result messages
}

// Content returns the flattened string content of the message: Text if set,
// else the concatenation of all text parts.
func (m Message) Content() string {
	if m.Text != "" || len(m.Parts) == 0 {
		return m.Text
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ChatMessage is the fluent, ordered builder described in spec §4.3.
// Invariant: at most one system message — System() replaces any existing
// system message rather than appending a second one.
type ChatMessage struct {
	messages []Message
	bindings map[string]string
}

// NewChatMessage returns an empty builder.
func NewChatMessage() *ChatMessage {
	return &ChatMessage{}
}

func (c *ChatMessage) append(role Role, content string) *ChatMessage {
	if role == RoleSystem {
		c.replaceSystem(content)
		return c
	}
	c.messages = append(c.messages, Message{Role: role, Text: content})
	return c
}

func (c *ChatMessage) replaceSystem(content string) {
	for i, m := range c.messages {
		if m.Role == RoleSystem {
			c.messages[i].Text = content
			return
		}
	}
	// insert at the front so system always leads the conversation.
	c.messages = append([]Message{{Role: RoleSystem, Text: content}}, c.messages...)
}

// System sets (or silently replaces) the single system message.
func (c *ChatMessage) System(content string) *ChatMessage { return c.append(RoleSystem, content) }

// User appends a user message.
func (c *ChatMessage) User(content string) *ChatMessage { return c.append(RoleUser, content) }

// Assistant appends an assistant message.
func (c *ChatMessage) Assistant(content string) *ChatMessage {
	return c.append(RoleAssistant, content)
}

// Developer appends a developer message (newer OpenAI-style system-adjacent role).
func (c *ChatMessage) Developer(content string) *ChatMessage {
	return c.append(RoleDeveloper, content)
}

// Tool appends a tool-result message tied to a prior tool call.
func (c *ChatMessage) Tool(toolCallID, content string) *ChatMessage {
	c.messages = append(c.messages, Message{Role: RoleTool, Text: content, ToolCallID: toolCallID})
	return c
}

// AddMessage is the generic form of the add<Role> dynamic-dispatch
// convention described in spec §4.3: any role name routes here. Invalid
// roles return ok=false rather than panicking, mirroring InvalidArgument
// raised instead of a best-effort guess.
func (c *ChatMessage) AddMessage(role Role, content string) (ok bool) {
	if !validRole(role) {
		return false
	}
	c.append(role, content)
	return true
}

// ReplaceSystemMessage is the explicit form of System(), kept for parity
// with the spec's named operation.
func (c *ChatMessage) ReplaceSystemMessage(content string) *ChatMessage {
	return c.System(content)
}

// History flattens and appends a slice of messages (or a single message via
// a one-element slice), preserving order.
func (c *ChatMessage) History(msgs []Message) *ChatMessage {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			c.replaceSystem(m.Text)
			continue
		}
		c.messages = append(c.messages, m)
	}
	return c
}

// Messages returns the ordered message list (a defensive copy).
func (c *ChatMessage) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// GetNonSystemMessages returns every message except the (at most one)
// system message.
func (c *ChatMessage) GetNonSystemMessages() []Message {
	out := make([]Message, 0, len(c.messages))
	for _, m := range c.messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// Bind stores default placeholder values used by Render.
func (c *ChatMessage) Bind(defaults map[string]string) *ChatMessage {
	if c.bindings == nil {
		c.bindings = make(map[string]string, len(defaults))
	}
	for k, v := range defaults {
		c.bindings[k] = v
	}
	return c
}

var placeholderRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// Format renders ${key} placeholders in every message's text using the
// supplied bindings merged over any stored defaults (runtime wins).
// Unresolved placeholders remain literal, per spec §4.3.
func (c *ChatMessage) Format(bindings map[string]string) *ChatMessage {
	merged := mergeBindings(c.bindings, bindings)
	for i, m := range c.messages {
		c.messages[i].Text = render(m.Text, merged)
	}
	return c
}

// Render renders using only the stored defaults (no runtime overrides).
func (c *ChatMessage) Render() *ChatMessage {
	return c.Format(nil)
}

func mergeBindings(stored, runtime map[string]string) map[string]string {
	merged := make(map[string]string, len(stored)+len(runtime))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range runtime {
		merged[k] = v
	}
	return merged
}

func render(text string, bindings map[string]string) string {
	if len(bindings) == 0 {
		return text
	}
	return placeholderRE.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-1]
		if v, ok := bindings[key]; ok {
			return v
		}
		return match
	})
}

// Stream emits each message, in order, to onMsg.
func (c *ChatMessage) Stream(onMsg func(Message)) {
	for _, m := range c.messages {
		onMsg(m)
	}
}

// WithFewShot appends a sequence of user/assistant example pairs, in order,
// after any messages already present — a convenience carried over from the teacher's
// fewshot.go, expressed as ChatMessage sugar rather than a separate type.
func (c *ChatMessage) WithFewShot(examples ...[2]string) *ChatMessage {
	for _, ex := range examples {
		c.User(ex[0])
		c.Assistant(ex[1])
	}
	return c
}
