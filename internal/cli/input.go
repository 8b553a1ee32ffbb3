// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/aura-tui/internal/config"
)

// InputReader provides line editing and persistent input history for the
// REPL.
type InputReader struct {
	line        *liner.State
	historyFile string
}

// NewInputReader creates a reader with history loaded from the config
// directory.
func NewInputReader() *InputReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	r := &InputReader{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	r.loadHistory()
	return r
}

func (r *InputReader) loadHistory() {
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// ReadLine reads one line of input. Non-empty input is added to history.
func (r *InputReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (r *InputReader) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		// 0600: input history may contain sensitive text
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}
