package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenAIEngineDefaults(t *testing.T) {
	engine, err := NewGenAIEngine("test-key", "")
	require.NoError(t, err)
	assert.Equal(t, "genai:gemini-embedding-001", engine.Name())
	assert.Equal(t, 768, engine.Dimensions())
}

func TestNewGenAIEngineRequiresKey(t *testing.T) {
	_, err := NewGenAIEngine("", "")
	require.Error(t, err)
}
