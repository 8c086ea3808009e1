package correction

import (
	"encoding/json"
	"strings"
	"unicode"

	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// Default values used when the model omits required fields.
const (
	defaultGreeting      = "¡Hola! He revisado tu texto."
	defaultTextType      = "Texto general"
	defaultCorrectedText = "No se generó texto corregido."
	defaultFinalAdvice   = "Continúa practicando tu español."
)

// noErrorPhrases mark an explanation as a non-finding to be filtered out.
var noErrorPhrases = []string{
	"no hay error", "sin error", "no se encontr", "no hay ningún error",
	"correcto tal como", "no es un error",
}

// Normalize turns a raw extracted record into a schema-complete Result.
// It fills defaults for missing fields, guarantees every category key,
// filters noise entries, rebalances suspicious category distributions,
// guarantees a structural suggestion and attaches the original text.
// Running it again over its own output changes nothing.
func Normalize(data map[string]any, originalText string) *Result {
	if data == nil {
		data = map[string]any{}
	}

	r := decodeRecord(data)
	applyDefaults(r, data, originalText)
	filterNoise(r)
	rebalance(r)
	ensureStructuralSuggestion(r)

	if r.OriginalText == "" {
		r.OriginalText = originalText
	}
	return r
}

// decodeRecord maps the loose record into the typed Result, tolerating
// malformed sub-structures by dropping them.
func decodeRecord(data map[string]any) *Result {
	r := &Result{Errors: map[string][]ErrorItem{}}

	r.Greeting, _ = data["saludo"].(string)
	r.TextType, _ = data["tipo_texto"].(string)
	r.CorrectedText, _ = data["texto_corregido"].(string)
	r.FinalAdvice, _ = data["consejo_final"].(string)
	r.OriginalText, _ = data["texto_original"].(string)

	if raw, ok := data["errores"]; ok {
		if b, err := json.Marshal(raw); err == nil {
			var m map[string][]ErrorItem
			if json.Unmarshal(b, &m) == nil {
				r.Errors = m
			}
		}
	}
	if raw, ok := data["analisis_contextual"]; ok {
		if b, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(b, &r.Analysis)
		}
	}
	return r
}

func applyDefaults(r *Result, data map[string]any, originalText string) {
	if r.Greeting == "" {
		r.Greeting = defaultGreeting
	}
	if r.TextType == "" {
		r.TextType = defaultTextType
	}
	if r.CorrectedText == "" {
		if originalText != "" {
			r.CorrectedText = originalText
		} else {
			r.CorrectedText = defaultCorrectedText
		}
	}
	if r.FinalAdvice == "" {
		r.FinalAdvice = defaultFinalAdvice
	}

	if r.Errors == nil {
		r.Errors = map[string][]ErrorItem{}
	}
	for _, category := range Categories {
		if _, ok := r.Errors[category]; !ok {
			r.Errors[category] = []ErrorItem{}
		}
	}

	if _, ok := data["analisis_contextual"]; !ok {
		r.Analysis = defaultAnalysis()
		return
	}
	fillAspect(&r.Analysis.Coherence)
	fillAspect(&r.Analysis.Cohesion)
	fillAspect(&r.Analysis.Register)
	fillAspect(&r.Analysis.CulturalFit)
}

func fillAspect(a *AspectScore) {
	if a.Score == 0 && a.Comment == "" {
		a.Score = DefaultAspectScore
		a.Comment = DefaultAspectComment
	}
	if a.Comment == "" {
		a.Comment = DefaultAspectComment
	}
}

// filterNoise drops entries whose before and after are identical or whose
// explanation says nothing was wrong.
func filterNoise(r *Result) {
	dropped := 0
	for category, items := range r.Errors {
		kept := items[:0]
		for _, item := range items {
			if isNoise(item) {
				dropped++
				continue
			}
			kept = append(kept, item)
		}
		r.Errors[category] = kept
	}
	if dropped > 0 {
		logx.Debug().Int("dropped", dropped).Msg("noise findings filtered")
	}
}

func isNoise(item ErrorItem) bool {
	if strings.TrimSpace(item.Fragment) == strings.TrimSpace(item.Correction) {
		return true
	}
	explanation := strings.ToLower(item.Explanation)
	for _, phrase := range noErrorPhrases {
		if strings.Contains(explanation, phrase) {
			return true
		}
	}
	return false
}

// rebalance redistributes findings when the model has dumped nearly all of
// them into a single category. Each finding is re-scored against every
// category's indicator words, ties keep the original category, and a few
// targeted overrides run afterward.
func rebalance(r *Result) {
	total := r.TotalFindings()
	if total == 0 {
		return
	}

	maxCount, nonEmpty := 0, 0
	for _, items := range r.Errors {
		if len(items) > maxCount {
			maxCount = len(items)
		}
		if len(items) > 0 {
			nonEmpty++
		}
	}

	skewed := total >= 3 && maxCount*100 > total*80
	collapsed := nonEmpty == 1 && total >= 2
	if !skewed && !collapsed {
		return
	}

	logx.Info().
		Int("total", total).
		Int("max_in_one_category", maxCount).
		Msg("suspicious category distribution, rebalancing findings")

	redistributed := make(map[string][]ErrorItem, len(Categories))
	for _, category := range Categories {
		redistributed[category] = []ErrorItem{}
	}
	for category, items := range r.Errors {
		for _, item := range items {
			target := classify(item, category)
			redistributed[target] = append(redistributed[target], item)
		}
	}
	r.Errors = redistributed
}

func classify(item ErrorItem, original string) string {
	evidence := strings.ToLower(item.Fragment + " " + item.Correction + " " + item.Explanation)

	best, bestScore := original, 0
	for _, category := range Categories {
		score := 0
		for _, word := range categoryIndicators[category] {
			if strings.Contains(evidence, word) {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && category == original) {
			best, bestScore = category, score
		}
	}

	// Overrides, later ones win.
	if isPunctuationChange(item) {
		best = CategoryPunctuation
	}
	if isNearIdentical(item) {
		best = CategoryLexicon
	}
	if isPrepositionSwap(item) {
		best = CategoryGrammar
	}
	return best
}

// isPunctuationChange reports whether before and after differ only in
// punctuation characters.
func isPunctuationChange(item ErrorItem) bool {
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if strings.ContainsRune(punctuationChars, r) || unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}
	before, after := strip(item.Fragment), strip(item.Correction)
	return before == after && before != ""
}

// isNearIdentical catches single-word substitutions of modest length, the
// typical shape of a lexical choice error.
func isNearIdentical(item ErrorItem) bool {
	before := strings.TrimSpace(item.Fragment)
	after := strings.TrimSpace(item.Correction)
	if before == after || before == "" || after == "" {
		return false
	}
	if len([]rune(before)) > 15 || strings.ContainsRune(before, ' ') || strings.ContainsRune(after, ' ') {
		return false
	}
	return editDistance(before, after) <= 2
}

func isPrepositionSwap(item ErrorItem) bool {
	before := strings.ToLower(strings.TrimSpace(item.Fragment))
	after := strings.ToLower(strings.TrimSpace(item.Correction))
	_, beforeOK := shortPrepositions[before]
	_, afterOK := shortPrepositions[after]
	return beforeOK && afterOK
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// ensureStructuralSuggestion synthesizes one structural finding when every
// other category has findings but the structural list is empty. Feedback on
// text organization is part of every correction.
func ensureStructuralSuggestion(r *Result) {
	if len(r.Errors[CategoryStructure]) > 0 {
		return
	}
	if r.TotalFindings() == 0 {
		return
	}

	sentences := splitSentences(r.CorrectedText)

	// Two adjacent short sentences merge well with a connector.
	for i := 0; i+1 < len(sentences); i++ {
		first, second := sentences[i], sentences[i+1]
		if len([]rune(first)) < 60 && len([]rune(second)) < 60 {
			r.Errors[CategoryStructure] = append(r.Errors[CategoryStructure], ErrorItem{
				Fragment:    first + ". " + second + ".",
				Correction:  first + " y, además, " + lowerFirst(second) + ".",
				Explanation: "Dos oraciones breves consecutivas pueden unirse con un conector para mejorar la fluidez del texto.",
			})
			return
		}
	}

	// A longer text with no discourse connectors gets one inserted between
	// its first two sentences.
	if len(sentences) >= 2 && len([]rune(r.CorrectedText)) > 100 && !containsConnector(r.CorrectedText) {
		first, second := sentences[0], sentences[1]
		r.Errors[CategoryStructure] = append(r.Errors[CategoryStructure], ErrorItem{
			Fragment:    first + ". " + second + ".",
			Correction:  first + ". Además, " + lowerFirst(second) + ".",
			Explanation: "El texto mejora añadiendo conectores discursivos que enlacen las ideas entre oraciones.",
		})
	}
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func containsConnector(text string) bool {
	lower := strings.ToLower(text)
	for _, connector := range discourseConnectors {
		if strings.Contains(lower, connector) {
			return true
		}
	}
	return false
}

func lowerFirst(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
