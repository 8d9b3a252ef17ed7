package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const conversationA = `{
  "uid": "a",
  "sessionModel": "gpt-4",
  "interviewModel": "gpt-4",
  "session": [{"role": "user", "content": "hello"}, {"role": "assistant", "content": "hi"}],
  "interview": [{"role": "assistant", "content": [{"type": "text", "text": "How was it?"}]}, {"role": "user", "content": "fine"}],
  "interviewStart": "2024-05-01T10:00:00Z",
  "interviewEnd": "2024-05-01T10:05:00Z"
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConversations_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `[{"uid":"b1","sessionModel":"llama"},{"uid":"b2","sessionModel":"llama"}]`)
	writeFile(t, dir, "a.json", conversationA)
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "notes.txt", `ignored`)

	core, logs := observer.New(zapcore.WarnLevel)
	convs, err := LoadConversations(dir, zap.New(core))
	require.NoError(t, err)

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"a", "b1", "b2"}, ids)

	first := convs[0]
	assert.Equal(t, "gpt-4", first.SessionModel)
	require.Len(t, first.Interview, 2)
	assert.Equal(t, models.RoleInterviewer, first.Interview[0].Role)
	assert.Equal(t, "How was it?", first.Interview[0].Content)
	assert.Equal(t, "2024-05-01T10:05:00Z", first.InterviewEnd)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "broken.json", logs.All()[0].ContextMap()["file"])
}

func TestLoadConversations_SingleFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("array file", func(t *testing.T) {
		path := writeFile(t, dir, "all.json", "\n  ["+conversationA+"]")
		convs, err := LoadConversations(path, nil)
		require.NoError(t, err)
		assert.Len(t, convs, 1)
	})

	t.Run("broken file fails", func(t *testing.T) {
		path := writeFile(t, dir, "bad.json", `[{`)
		_, err := LoadConversations(path, nil)
		assert.Error(t, err)
	})

	t.Run("empty array", func(t *testing.T) {
		path := writeFile(t, dir, "empty.json", `[]`)
		_, err := LoadConversations(path, nil)
		assert.ErrorIs(t, err, ErrNoConversations)
	})
}

func TestLoadConversations_Missing(t *testing.T) {
	_, err := LoadConversations(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)

	_, err = LoadConversations(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNoConversations)
}
