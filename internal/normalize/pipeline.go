// Package normalize implements the deterministic text cleanup, domain
// correction, and fuzzy fallback stages that sit in front of the semantic
// index. The support catalog is bilingual (Spanish/English), so the token
// alphabet and the correction tables carry Spanish diacritics.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"intentcore/internal/logging"
)

// Result is the ephemeral outcome of normalizing one message.
type Result struct {
	Original   string
	Normalized string
	Changed    bool
	Notes      []string
}

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// 3+ repeats of the same punctuation character collapse to one. RE2 has
	// no backreferences, so each character gets its own run pattern.
	punctRunRes = buildPunctRunRes()
)

func buildPunctRunRes() []struct {
	re          *regexp.Regexp
	replacement string
} {
	chars := []string{"!", "?", ".", ",", ";", ":", "¡", "¿", "*", "#", "~", "-"}
	out := make([]struct {
		re          *regexp.Regexp
		replacement string
	}, 0, len(chars))
	for _, ch := range chars {
		out = append(out, struct {
			re          *regexp.Regexp
			replacement string
		}{regexp.MustCompile(regexp.QuoteMeta(ch) + `{3,}`), ch})
	}
	return out
}

// spellingFixes maps known misspelled domain words (mostly dropped
// diacritics) to their canonical form. Applied whole-word after lowercasing.
var spellingFixes = map[string]string{
	"facturacion": "facturación",
	"factira":     "factura",
	"facura":      "factura",
	"suscripcion": "suscripción",
	"suscricion":  "suscripción",
	"cancelacion": "cancelación",
	"devolucion":  "devolución",
	"telefono":    "teléfono",
	"contrasena":  "contraseña",
}

var spellingRes = buildSpellingRes()

func buildSpellingRes() []struct {
	re          *regexp.Regexp
	replacement string
} {
	out := make([]struct {
		re          *regexp.Regexp
		replacement string
	}, 0, len(spellingFixes))
	for word, fix := range spellingFixes {
		out = append(out, struct {
			re          *regexp.Regexp
			replacement string
		}{regexp.MustCompile(`\b` + word + `\b`), fix})
	}
	return out
}

// correctionRule is one ordered phrase-level rewrite. Rules apply
// cumulatively: later rules see the output of earlier ones.
type correctionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var correctionRules = []correctionRule{
	{regexp.MustCompile(`\bpay ?pal\b`), "paypal"},
	{regexp.MustCompile(`\bcorreo electronico\b`), "correo electrónico"},
	{regexp.MustCompile(`\bboleta\b`), "factura"},
	{regexp.MustCompile(`\brecibo de pago\b`), "factura"},
	{regexp.MustCompile(`\bdarme de baja\b`), "cancelar suscripción"},
	{regexp.MustCompile(`\bdar de baja\b`), "cancelar suscripción"},
	{regexp.MustCompile(`\bplan premiun\b`), "plan premium"},
	{regexp.MustCompile(`\bno anda\b`), "no funciona"},
	{regexp.MustCompile(`\bno me deja\b`), "no funciona"},
}

// Preprocess runs the first pipeline stage: lowercase, strip markup-like
// tags, collapse whitespace, collapse repeated punctuation, fix known
// misspelled domain words.
func Preprocess(text string) string {
	s := strings.ToLower(text)
	s = tagRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	for _, run := range punctRunRes {
		s = run.re.ReplaceAllString(s, run.replacement)
	}
	for _, fix := range spellingRes {
		s = fix.re.ReplaceAllString(s, fix.replacement)
	}
	return strings.TrimSpace(s)
}

// applyCorrections runs the ordered domain rules and reports which ones
// fired, in order.
func applyCorrections(text string) (string, []string) {
	var notes []string
	for _, rule := range correctionRules {
		replaced := rule.pattern.ReplaceAllString(text, rule.replacement)
		if replaced != text {
			notes = append(notes, fmt.Sprintf("corrected %q to %q", rule.pattern.String(), rule.replacement))
			text = replaced
		}
	}
	return text, notes
}

// NormalizeInput runs the full cleanup pipeline (preprocess then domain
// correction) over one message. Changed reports whether the result differs
// from the trivially lowercased/trimmed original.
func NormalizeInput(text string) Result {
	preprocessed := Preprocess(text)
	corrected, notes := applyCorrections(preprocessed)

	if corrected != preprocessed {
		notes = append(notes, "domain corrections changed the preprocessed text")
	}

	result := Result{
		Original:   text,
		Normalized: corrected,
		Changed:    corrected != strings.TrimSpace(strings.ToLower(text)),
		Notes:      notes,
	}

	if result.Changed {
		logging.NormalizeDebug("Normalized %q -> %q (%d notes)", text, corrected, len(notes))
	}
	return result
}
