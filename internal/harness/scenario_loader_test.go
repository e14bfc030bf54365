package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenarios_File(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "indexing.yaml", `
name: indexing
description: Opens the project and waits for indexing
command: ./bin/idea.sh
args:
  - "--run-id={{ .RunID }}"
env:
  IDE_LOG: "{{ .WorkingDir }}/idea.log"
working_dir: /tmp/project
timeout: 5m
expect_exit_code: 3
tags: [smoke, indexing]
`)

	scenarios, err := LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	s := scenarios[0]
	assert.Equal(t, "indexing", s.Name)
	assert.Equal(t, "./bin/idea.sh", s.Command)
	assert.Equal(t, []string{"--run-id={{ .RunID }}"}, s.Args)
	assert.Equal(t, map[string]string{"IDE_LOG": "{{ .WorkingDir }}/idea.log"}, s.Env)
	assert.Equal(t, "/tmp/project", s.WorkingDir)
	assert.Equal(t, 5*time.Minute, s.Timeout)
	assert.Equal(t, 3, s.ExpectExitCode)
	assert.Equal(t, []string{"smoke", "indexing"}, s.Tags)
	assert.False(t, s.Skip)
}

func TestLoadScenarios_Directory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "command: idea\n")
	writeScenario(t, dir, "nested/a.yml", "command: idea\nskip: true\n")
	writeScenario(t, dir, "README.md", "not a scenario")

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	// Named after their files and sorted by name.
	assert.Equal(t, "a", scenarios[0].Name)
	assert.True(t, scenarios[0].Skip)
	assert.Equal(t, "b", scenarios[1].Name)
}

func TestLoadScenarios_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing command",
			files:   map[string]string{"empty.yaml": "name: empty\n"},
			wantErr: `scenario "empty": command is required`,
		},
		{
			name:    "negative timeout",
			files:   map[string]string{"neg.yaml": "command: idea\ntimeout: -1s\n"},
			wantErr: "timeout must not be negative",
		},
		{
			name:    "invalid yaml",
			files:   map[string]string{"broken.yaml": "command: [idea\n"},
			wantErr: "failed to parse YAML",
		},
		{
			name: "duplicate names",
			files: map[string]string{
				"one.yaml": "name: same\ncommand: idea\n",
				"two.yaml": "name: same\ncommand: idea\n",
			},
			wantErr: `duplicate scenario name "same"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeScenario(t, dir, name, content)
			}
			_, err := LoadScenarios(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_MissingPath(t *testing.T) {
	_, err := LoadScenarios(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario path does not exist")
}

func TestFilterScenarios(t *testing.T) {
	scenarios := []Scenario{
		{Name: "indexing-small", Tags: []string{"smoke"}},
		{Name: "indexing-large", Tags: []string{"perf"}},
		{Name: "startup", Tags: []string{"smoke", "perf"}},
		{Name: "untagged"},
	}

	names := func(ss []Scenario) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Equal(t, names(scenarios), names(FilterScenarios(scenarios, RunConfiguration{})))
	assert.Equal(t, []string{"indexing-small", "indexing-large"},
		names(FilterScenarios(scenarios, RunConfiguration{Scenario: "indexing"})))
	assert.Equal(t, []string{"indexing-small", "startup"},
		names(FilterScenarios(scenarios, RunConfiguration{Tags: []string{"smoke"}})))
	assert.Equal(t, []string{"indexing-large"},
		names(FilterScenarios(scenarios, RunConfiguration{Scenario: "indexing", Tags: []string{"perf"}})))
	assert.Empty(t, FilterScenarios(scenarios, RunConfiguration{Tags: []string{"nightly"}}))
}
