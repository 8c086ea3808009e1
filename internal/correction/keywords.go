package correction

// Indicator word lists used by the rebalancing pass to score a finding
// against each category. These are domain configuration, tuned for Spanish
// learner texts, and can be replaced without touching the scoring logic.
var categoryIndicators = map[string][]string{
	CategoryGrammar: {
		"verbo", "conjugación", "conjugar", "concordancia", "tiempo verbal",
		"subjuntivo", "indicativo", "artículo", "género", "número",
		"preposición", "pronombre", "tilde", "acento", "ortografía",
		"mayúscula", "minúscula", "gramática", "gramatical",
	},
	CategoryLexicon: {
		"vocabulario", "palabra", "término", "falso amigo", "colocación",
		"expresión", "significado", "anglicismo", "léxico", "sinónimo",
		"palabra más adecuada", "elección de palabra",
	},
	CategoryPunctuation: {
		"coma", "punto y coma", "dos puntos", "punto", "signo",
		"interrogación", "exclamación", "comillas", "paréntesis",
		"guion", "puntuación",
	},
	CategoryStructure: {
		"párrafo", "conector", "orden de", "estructura", "oración",
		"frase", "cohesión", "coherencia", "repetición", "organización",
		"fluidez",
	},
}

// punctuationChars are the characters whose presence or removal marks a
// punctuation-only change.
const punctuationChars = ",.;:¡!¿?()\"«»—-"

// shortPrepositions trigger the grammar override when a finding swaps one
// for another.
var shortPrepositions = map[string]struct{}{
	"a": {}, "de": {}, "en": {}, "por": {}, "para": {}, "con": {},
	"sin": {}, "sobre": {}, "entre": {}, "hacia": {}, "desde": {},
}

// discourseConnectors is the vocabulary checked by the structural
// suggestion synthesizer.
var discourseConnectors = []string{
	"además", "sin embargo", "por lo tanto", "aunque", "también",
	"entonces", "después", "porque", "pero", "ya que", "no obstante",
	"por eso", "asimismo",
}
