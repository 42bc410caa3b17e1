package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoRunsScriptedSession(t *testing.T) {
	t.Setenv("EXTRACTOR_STRATEGY", "keyword")
	t.Setenv("MEMORY_URL", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"demo", "--env-file", "", "--store", "memory"})

	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Phase: listening")
	assert.Contains(t, text, "Phase: mood_confirmation  Anchor: projects")
	assert.Contains(t, text, "Phase: questioning")
	assert.Contains(t, text, "Phase: closed")
	assert.Contains(t, text, "Assistant: (silent)")
	assert.Contains(t, text, "After close: session is closed")
}

func TestBuildAppRejectsUnknownBackend(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	cfg.StoreBackend = "sqlite"
	_, err = buildApp(t.Context(), cfg)
	assert.Error(t, err)

	cfg.StoreBackend = backendMemory
	cfg.Extractor.Strategy = "oracle"
	_, err = buildApp(t.Context(), cfg)
	assert.Error(t, err)
}
