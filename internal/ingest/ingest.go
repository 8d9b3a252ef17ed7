package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/godilite/insighter/internal/repository/models"
	"go.uber.org/zap"
)

var ErrNoConversations = errors.New("no conversations found")

// LoadConversations reads conversations from path. A directory is scanned for
// *.json files in name order, each holding one conversation or an array of
// them; files that fail to decode are logged and skipped. A single file must
// decode.
func LoadConversations(path string, logger *zap.Logger) ([]models.Conversation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	if !info.IsDir() {
		convs, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if len(convs) == 0 {
			return nil, fmt.Errorf("%w in %s", ErrNoConversations, path)
		}
		return convs, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []models.Conversation
	for _, name := range names {
		convs, err := readFile(filepath.Join(path, name))
		if err != nil {
			logger.Warn("skipping unreadable conversation file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		out = append(out, convs...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoConversations, path)
	}

	logger.Info("loaded conversations",
		zap.String("path", path),
		zap.Int("files", len(names)),
		zap.Int("conversations", len(out)))

	return out, nil
}

func readFile(path string) ([]models.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var convs []models.Conversation
		if err := json.Unmarshal(trimmed, &convs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return convs, nil
	}

	var conv models.Conversation
	if err := json.Unmarshal(trimmed, &conv); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []models.Conversation{conv}, nil
}
