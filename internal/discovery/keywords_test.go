package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywordsDropsNoise(t *testing.T) {
	texts := []string{
		"hola necesito la factura 12345 de mi suscripción",
		"la factura no llega por favor",
	}

	keywords := extractKeywords(texts, 8)
	assert.Contains(t, keywords, "factura")
	assert.Contains(t, keywords, "suscripción")
	assert.NotContains(t, keywords, "hola", "greeting stopword must be dropped")
	assert.NotContains(t, keywords, "12345", "pure numerics must be dropped")
	assert.NotContains(t, keywords, "la", "short tokens must be dropped")
}

func TestExtractKeywordsDocumentFrequencyNotOccurrence(t *testing.T) {
	// "factura" repeats five times in one document, "pago" appears once in
	// each of two. Document frequency ranks "pago" first.
	texts := []string{
		"factura factura factura factura factura",
		"pago rechazado",
		"pago duplicado",
	}

	keywords := extractKeywords(texts, 8)
	assert.Equal(t, "pago", keywords[0])
}

func TestExtractKeywordsLimit(t *testing.T) {
	texts := []string{"alfa bravo charlie delta echo foxtrot golf hotel india juliett"}

	keywords := extractKeywords(texts, 8)
	assert.Len(t, keywords, 8)
}

func TestExtractKeywordsEmptyInput(t *testing.T) {
	assert.Empty(t, extractKeywords(nil, 8))
	assert.Empty(t, extractKeywords([]string{""}, 8))
}
