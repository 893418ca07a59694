package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/callflow"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesSchema(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	projects, err := db.Projects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProjectsAndChats(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	project, err := db.CreateProject(ctx, "research")
	require.NoError(t, err)
	require.NotEmpty(t, project.ID)

	first, err := db.CreateChat(ctx, project.ID, "first")
	require.NoError(t, err)
	second, err := db.CreateChat(ctx, project.ID, "second")
	require.NoError(t, err)

	// Activity on the older chat should float it to the top.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, db.TouchChat(ctx, first.ID))

	chats, err := db.Chats(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, first.ID, chats[0].ID)
	assert.Equal(t, second.ID, chats[1].ID)
}

func TestSaveMessage_RoundTrip(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	project, err := db.CreateProject(ctx, "p")
	require.NoError(t, err)
	chat, err := db.CreateChat(ctx, project.ID, "c")
	require.NoError(t, err)

	messages := []callflow.Message{
		callflow.UserMessage("weather in oslo?"),
		{
			Role:    callflow.RoleAssistant,
			Content: "checking",
			ToolCalls: []callflow.ToolCall{
				{ID: "c1", Name: "get_weather", Arguments: `{"city":"Oslo"}`},
			},
		},
		callflow.ToolMessage(callflow.ToolCall{ID: "c1", Name: "get_weather"}, "sunny", false),
		{Role: callflow.RoleAssistant, Content: "It is sunny."},
	}
	for _, m := range messages {
		require.NoError(t, db.SaveMessage(ctx, chat.ID, m))
	}

	got, err := db.Messages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, callflow.RoleUser, got[0].Role)
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "c1", got[1].ToolCalls[0].ID)
	assert.Equal(t, `{"city":"Oslo"}`, got[1].ToolCalls[0].Arguments)
	assert.Equal(t, "c1", got[2].ToolCallID)
	assert.Equal(t, "get_weather", got[2].ToolName)
	assert.False(t, got[2].IsError)
	assert.Equal(t, "It is sunny.", got[3].Content)
}

func TestRecentMessages_TrailingWindowInOrder(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	project, err := db.CreateProject(ctx, "p")
	require.NoError(t, err)
	chat, err := db.CreateChat(ctx, project.ID, "c")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three", "four"} {
		require.NoError(t, db.SaveMessage(ctx, chat.ID, callflow.UserMessage(content)))
	}

	got, err := db.RecentMessages(ctx, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Content)
	assert.Equal(t, "four", got[1].Content)
}

func TestSettings_AlwaysAllow(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	always, err := db.AlwaysAllow(ctx)
	require.NoError(t, err)
	assert.False(t, always)

	require.NoError(t, db.SetAlwaysAllow(ctx, true))
	always, err = db.AlwaysAllow(ctx)
	require.NoError(t, err)
	assert.True(t, always)

	require.NoError(t, db.SetAlwaysAllow(ctx, false))
	always, err = db.AlwaysAllow(ctx)
	require.NoError(t, err)
	assert.False(t, always)
}

func TestSettings_SandboxSafeDefaultsTrue(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	safe, err := db.SandboxSafe(ctx)
	require.NoError(t, err)
	assert.True(t, safe)

	require.NoError(t, db.SetSandboxSafe(ctx, false))
	safe, err = db.SandboxSafe(ctx)
	require.NoError(t, err)
	assert.False(t, safe)
}
