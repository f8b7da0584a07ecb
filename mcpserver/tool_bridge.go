package mcpserver

import "github.com/airuntime/core/chat"

// toolCallFrom adapts a tools/call request into the chat.ToolCall shape
// tool.Registry.ExecuteOne expects, so the same Registry backs both the
// agent loop (§4.4) and MCP tool dispatch (§4.7) without a second
// execution path.
func toolCallFrom(name string, arguments []byte) chat.ToolCall {
	return chat.ToolCall{Name: name, Type: "function", Arguments: string(arguments)}
}
