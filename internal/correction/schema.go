package correction

// Fixed error categories. Category keys keep their accented display form
// throughout the pipeline.
const (
	CategoryGrammar     = "Gramática"
	CategoryLexicon     = "Léxico"
	CategoryPunctuation = "Puntuación"
	CategoryStructure   = "Estructura textual"
)

// Categories lists the fixed category keys in presentation order.
var Categories = []string{CategoryGrammar, CategoryLexicon, CategoryPunctuation, CategoryStructure}

// Analysis aspect defaults when the model omits them.
const (
	DefaultAspectScore   = 5
	DefaultAspectComment = "No disponible"
)

// ErrorItem is one finding inside a category list.
type ErrorItem struct {
	Fragment    string `json:"fragmento_erroneo"`
	Correction  string `json:"correccion"`
	Explanation string `json:"explicacion"`
}

// AspectScore is one scored dimension of the contextual analysis.
type AspectScore struct {
	Score   int    `json:"puntuacion"`
	Comment string `json:"comentario"`
}

// ContextAnalysis is the fixed-shape contextual assessment of the text.
type ContextAnalysis struct {
	Coherence   AspectScore `json:"coherencia"`
	Cohesion    AspectScore `json:"cohesion"`
	Register    AspectScore `json:"registro_linguistico"`
	CulturalFit AspectScore `json:"adecuacion_cultural"`
}

// Result is the schema-validated correction record returned to callers.
// After Normalize it always carries every fixed field, every category key
// and the original input text.
type Result struct {
	Greeting      string                 `json:"saludo"`
	TextType      string                 `json:"tipo_texto"`
	Errors        map[string][]ErrorItem `json:"errores"`
	CorrectedText string                 `json:"texto_corregido"`
	Analysis      ContextAnalysis        `json:"analisis_contextual"`
	FinalAdvice   string                 `json:"consejo_final"`
	OriginalText  string                 `json:"texto_original,omitempty"`

	// Error carries a human-readable failure message when no correction
	// could be produced. A non-empty value marks the record error-shaped.
	Error string `json:"error,omitempty"`
}

// IsError reports whether the record represents a failed request rather
// than a correction.
func (r *Result) IsError() bool {
	return r != nil && r.Error != ""
}

// TotalFindings counts findings across every category.
func (r *Result) TotalFindings() int {
	total := 0
	for _, items := range r.Errors {
		total += len(items)
	}
	return total
}

// ErrorResult builds an error-shaped record that still satisfies the full
// schema, keeping the user's input available for display.
func ErrorResult(message, originalText string) *Result {
	r := &Result{
		Error:         message,
		CorrectedText: "No se pudo procesar la respuesta correctamente.",
		FinalAdvice:   "Hubo un problema al procesar tu texto. Por favor, intenta nuevamente.",
		OriginalText:  originalText,
		Errors:        emptyCategories(),
		Analysis:      defaultAnalysis(),
	}
	return r
}

func emptyCategories() map[string][]ErrorItem {
	m := make(map[string][]ErrorItem, len(Categories))
	for _, c := range Categories {
		m[c] = []ErrorItem{}
	}
	return m
}

func defaultAnalysis() ContextAnalysis {
	aspect := AspectScore{Score: DefaultAspectScore, Comment: DefaultAspectComment}
	return ContextAnalysis{
		Coherence:   aspect,
		Cohesion:    aspect,
		Register:    aspect,
		CulturalFit: aspect,
	}
}
