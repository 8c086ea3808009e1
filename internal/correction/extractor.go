package correction

import (
	"encoding/json"
	"regexp"
	"strings"

	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

var (
	fencedJSONRe       = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedGenericRe    = regexp.MustCompile("(?s)```\\s*(.*?)```")
	trailingCommaObjRe = regexp.MustCompile(`,\s*}`)
	trailingCommaArrRe = regexp.MustCompile(`,\s*]`)
)

var expectedKeys = []string{
	"saludo", "tipo_texto", "errores",
	"texto_corregido", "analisis_contextual", "consejo_final",
}

// stringFieldRes extracts simple string fields during manual reconstruction.
var stringFieldRes = map[string]*regexp.Regexp{
	"saludo":          regexp.MustCompile(`["']saludo["']\s*:\s*["']([^"']*)["']`),
	"tipo_texto":      regexp.MustCompile(`["']tipo_texto["']\s*:\s*["']([^"']*)["']`),
	"texto_corregido": regexp.MustCompile(`["']texto_corregido["']\s*:\s*["']([^"']*)["']`),
	"consejo_final":   regexp.MustCompile(`["']consejo_final["']\s*:\s*["']([^"']*)["']`),
}

// Extract pulls a correction record out of raw model output. Strategies are
// tried in order, each more forgiving than the last, and the function never
// fails: when nothing parseable remains it returns a minimal apology record.
func Extract(content string) map[string]any {
	if strings.TrimSpace(content) == "" {
		logx.Warn().Msg("empty model output, nothing to extract")
		return fallbackRecord()
	}

	// 1. The whole output is already a JSON object.
	if record, ok := parseObject(content); ok {
		return record
	}

	// 2. Fenced ```json blocks.
	for _, m := range fencedJSONRe.FindAllStringSubmatch(content, -1) {
		if record, ok := parseObject(m[1]); ok {
			logx.Debug().Msg("record extracted from fenced json block")
			return record
		}
	}

	// 3. Generic fenced blocks that look like an object.
	for _, m := range fencedGenericRe.FindAllStringSubmatch(content, -1) {
		if strings.HasPrefix(strings.TrimSpace(m[1]), "{") {
			if record, ok := parseObject(m[1]); ok {
				logx.Debug().Msg("record extracted from generic fenced block")
				return record
			}
		}
	}

	// 4. First '{' through last '}', with repair on failure.
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		candidate := content[start : end+1]
		if record, ok := parseObject(candidate); ok {
			logx.Debug().Msg("record extracted from brace slice")
			return record
		}
		if record, ok := parseObject(repairJSON(candidate)); ok {
			logx.Info().Msg("record extracted after structural repair")
			return record
		}
	}

	// 5. Field-by-field reconstruction when the output clearly carries the
	// correction shape but is not parseable as a whole.
	if record, ok := reconstructRecord(content); ok {
		logx.Info().Msg("record rebuilt field by field from unparseable output")
		return record
	}

	logx.Warn().
		Str("preview", preview(content)).
		Msg("no parseable record in model output, returning fallback")
	return fallbackRecord()
}

func parseObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil, false
	}
	record, ok := v.(map[string]any)
	return record, ok
}

// repairJSON applies cheap fixes to almost-valid output: control characters
// stripped, single quotes promoted when the text carries no double quotes,
// unbalanced braces and brackets closed, trailing commas removed.
func repairJSON(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7F && r <= 0x9F) {
			return -1
		}
		return r
	}, s)

	if strings.Contains(cleaned, "'") && !strings.Contains(cleaned, `"`) {
		cleaned = strings.ReplaceAll(cleaned, "'", `"`)
	}

	if open, closed := strings.Count(cleaned, "{"), strings.Count(cleaned, "}"); open > closed {
		cleaned += strings.Repeat("}", open-closed)
	}
	if open, closed := strings.Count(cleaned, "["), strings.Count(cleaned, "]"); open > closed {
		cleaned += strings.Repeat("]", open-closed)
	}

	cleaned = trailingCommaObjRe.ReplaceAllString(cleaned, "}")
	cleaned = trailingCommaArrRe.ReplaceAllString(cleaned, "]")
	return cleaned
}

func reconstructRecord(content string) (map[string]any, bool) {
	present := 0
	for _, key := range expectedKeys {
		if regexp.MustCompile(`["']` + key + `["']`).MatchString(content) {
			present++
		}
	}
	if present < 3 {
		return nil, false
	}

	record := map[string]any{
		"errores": map[string]any{
			CategoryGrammar:     []any{},
			CategoryLexicon:     []any{},
			CategoryPunctuation: []any{},
			CategoryStructure:   []any{},
		},
		"analisis_contextual": analysisMap("Extracción manual"),
	}
	for field, re := range stringFieldRes {
		if m := re.FindStringSubmatch(content); m != nil {
			record[field] = m[1]
		}
	}
	return record, true
}

func fallbackRecord() map[string]any {
	return map[string]any{
		"texto_corregido": "No se pudo procesar la respuesta correctamente.",
		"errores": map[string]any{
			CategoryGrammar:     []any{},
			CategoryLexicon:     []any{},
			CategoryPunctuation: []any{},
			CategoryStructure:   []any{},
		},
		"analisis_contextual": analysisMap(DefaultAspectComment),
		"consejo_final":       "Hubo un problema al procesar la respuesta. Por favor, intenta nuevamente.",
	}
}

func analysisMap(comment string) map[string]any {
	aspect := func() map[string]any {
		return map[string]any{"puntuacion": DefaultAspectScore, "comentario": comment}
	}
	return map[string]any{
		"coherencia":           aspect(),
		"cohesion":             aspect(),
		"registro_linguistico": aspect(),
		"adecuacion_cultural":  aspect(),
	}
}

func preview(content string) string {
	flat := strings.ReplaceAll(content, "\n", " ")
	if len(flat) > 100 {
		return flat[:100] + "..."
	}
	return flat
}
