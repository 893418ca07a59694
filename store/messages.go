package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dkoval/callflow"
)

// SaveMessage journals one conversation message under chatID and bumps the
// chat's activity timestamp. Implements callflow.ConversationStore.
func (db *DB) SaveMessage(ctx context.Context, chatID string, m callflow.Message) error {
	var toolCalls any
	if len(m.ToolCalls) > 0 {
		raw, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return err
		}
		toolCalls = string(raw)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, role, content, tool_calls, tool_call_id, tool_name, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chatID, string(m.Role), m.Content, toolCalls, m.ToolCallID, m.ToolName, boolInt(m.IsError))
	if err != nil {
		return err
	}
	return db.TouchChat(ctx, chatID)
}

// Messages returns a chat's full history in order.
func (db *DB) Messages(ctx context.Context, chatID string) ([]callflow.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, tool_name, is_error
		 FROM messages WHERE chat_id = ? ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the trailing limit messages of a chat in order.
func (db *DB) RecentMessages(ctx context.Context, chatID string, limit int) ([]callflow.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, tool_name, is_error
		 FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanMessages(rows *sql.Rows) ([]callflow.Message, error) {
	var out []callflow.Message
	for rows.Next() {
		var m callflow.Message
		var role string
		var toolCalls, toolCallID, toolName sql.NullString
		var isError int
		if err := rows.Scan(&role, &m.Content, &toolCalls, &toolCallID, &toolName, &isError); err != nil {
			return nil, err
		}
		m.Role = callflow.Role(role)
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, err
			}
		}
		m.ToolCallID = toolCallID.String
		m.ToolName = toolName.String
		m.IsError = isError != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
