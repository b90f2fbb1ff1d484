package labeling

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeGenerator) GenerateLabels(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func sampleSummaries() []ClusterSummary {
	return []ClusterSummary{
		{Ordinal: 1, Keywords: []string{"factura", "copia"}, Samples: []string{"necesito copia de mi factura"}},
		{Ordinal: 2, Keywords: []string{"contraseña", "acceso"}, IntentID: "account_password_reset"},
	}
}

func TestBuildPromptMentionsEveryCluster(t *testing.T) {
	prompt := BuildPrompt(sampleSummaries())

	assert.Contains(t, prompt, "Cluster 1")
	assert.Contains(t, prompt, "Cluster 2")
	assert.Contains(t, prompt, "factura, copia")
	assert.Contains(t, prompt, "account_password_reset")
	assert.Contains(t, prompt, "'N: label'")
}

func TestParseLabelsLenientFormats(t *testing.T) {
	response := "Here are the labels:\n" +
		"1: Copia de factura\n" +
		"- 2) \"Recuperar contraseña\"\n" +
		"3. Problema de pago\n" +
		"not a label line\n" +
		"99: out of range\n"

	labels := ParseLabels(response, 3)
	assert.Equal(t, map[int]string{
		1: "Copia de factura",
		2: "Recuperar contraseña",
		3: "Problema de pago",
	}, labels)
}

func TestParseLabelsGarbageResponse(t *testing.T) {
	labels := ParseLabels("I cannot help with that.", 5)
	assert.Empty(t, labels)
}

func TestLabelClusters(t *testing.T) {
	gen := &fakeGenerator{response: "1: Copia de factura\n2: Recuperar contraseña"}

	labels, err := LabelClusters(context.Background(), gen, sampleSummaries())
	require.NoError(t, err)
	assert.Len(t, labels, 2)
	assert.Equal(t, "Copia de factura", labels[1])
	require.Len(t, gen.prompts, 1)
}

func TestLabelClustersGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("provider timeout")}

	_, err := LabelClusters(context.Background(), gen, sampleSummaries())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider timeout")
}

func TestLabelClustersNilGenerator(t *testing.T) {
	labels, err := LabelClusters(context.Background(), nil, sampleSummaries())
	require.NoError(t, err)
	assert.Nil(t, labels)
}
