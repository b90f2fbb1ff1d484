package discovery

import (
	"sort"

	"intentcore/internal/normalize"
)

// stopwords are never reported as cluster keywords: general Spanish and
// English function words plus the pleasantries and filler that dominate
// support tickets without describing a theme.
var stopwords = map[string]bool{
	// Spanish
	"que": true, "los": true, "las": true, "una": true, "uno": true,
	"unos": true, "unas": true, "por": true, "para": true, "con": true,
	"del": true, "como": true, "pero": true, "este": true, "esta": true,
	"esto": true, "estos": true, "estas": true, "ese": true, "esa": true,
	"eso": true, "desde": true, "hasta": true, "donde": true, "cuando": true,
	"porque": true, "también": true, "tambien": true, "muy": true,
	"más": true, "mas": true, "sin": true, "sobre": true, "entre": true,
	"hay": true, "fue": true, "ser": true, "son": true, "está": true,
	"estoy": true, "tengo": true, "hace": true,
	"puede": true, "puedo": true, "quiero": true, "necesito": true,
	"quisiera": true, "hola": true, "buenas": true, "buenos": true,
	"dias": true, "días": true, "tardes": true, "noches": true,
	"gracias": true, "favor": true, "saludos": true, "ayuda": true,
	"urgente": true, "ustedes": true, "nosotros": true, "alguien": true,

	// English
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "you": true, "your": true, "not": true, "are": true,
	"was": true, "have": true, "has": true, "but": true, "can": true,
	"cannot": true, "will": true, "would": true, "please": true,
	"hello": true, "thanks": true, "help": true, "need": true,
	"want": true, "from": true, "when": true, "where": true, "how": true,
}

// extractKeywords returns the top keywords across the given documents by
// document frequency: each unique token counts once per document, so one
// verbose ticket cannot dominate the cluster's keyword list. Stopwords,
// pure-numeric tokens, and tokens shorter than 3 characters are dropped.
func extractKeywords(texts []string, limit int) []string {
	docFreq := make(map[string]int)

	for _, text := range texts {
		seen := make(map[string]bool)
		for _, tok := range normalize.Tokenize(text) {
			if len([]rune(tok)) < 3 || stopwords[tok] || isNumeric(tok) || seen[tok] {
				continue
			}
			seen[tok] = true
			docFreq[tok]++
		}
	}

	keywords := make([]string, 0, len(docFreq))
	for tok := range docFreq {
		keywords = append(keywords, tok)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if docFreq[keywords[i]] != docFreq[keywords[j]] {
			return docFreq[keywords[i]] > docFreq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
