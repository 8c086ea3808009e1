package tools

import "strings"

// CriticalExample pairs a typical learner error with its correction.
type CriticalExample struct {
	Error      string `json:"error"`
	Correction string `json:"correccion"`
}

// LevelCriteria summarizes what is expected, tolerated and penalized at one
// MCER level, plus the score ceilings applied per error density.
type LevelCriteria struct {
	Level            string            `json:"nivel_mcer"`
	Expected         []string          `json:"competencias_esperadas"`
	Acceptable       []string          `json:"errores_aceptables"`
	Unacceptable     []string          `json:"errores_inaceptables"`
	MaxScores        map[string]int    `json:"puntuacion_maxima"`
	CriticalExamples []CriticalExample `json:"ejemplos_criticos"`
}

// CriteriaFor resolves the evaluation criteria of an MCER level, falling
// back to B1 for unknown input.
func CriteriaFor(level string) LevelCriteria {
	key := strings.ToUpper(strings.TrimSpace(level))
	criteria, ok := criteriaByLevel[key]
	if !ok {
		criteria = criteriaByLevel["B1"]
		criteria.Level = key + " (desconocido, usando B1)"
	}
	return criteria
}

var criteriaByLevel = map[string]LevelCriteria{
	"A1": {
		Level: "A1",
		Expected: []string{
			"Frases simples y aisladas",
			"Vocabulario básico limitado a necesidades concretas",
			"Conjugación de verbos regulares en presente",
			"Uso básico de artículos y preposiciones más comunes",
		},
		Acceptable: []string{
			"Confusión ocasional en conjugaciones",
			"Omisión de artículos en algunos contextos",
			"Errores de concordancia género/número",
		},
		Unacceptable: []string{
			"Mezcla caótica de tiempos verbales sin lógica",
			"Incomprensibilidad general del texto",
		},
		MaxScores: map[string]int{"muchos_errores": 5, "errores_moderados": 6, "pocos_errores": 7},
	},
	"A2": {
		Level: "A2",
		Expected: []string{
			"Frases conectadas con recursos simples",
			"Uso de presente, pasado y futuro simple",
			"Vocabulario suficiente para situaciones cotidianas",
		},
		Acceptable: []string{
			"Errores ocasionales en concordancia",
			"Confusión en tiempos verbales complejos",
			"Uso básico de conectores",
		},
		Unacceptable: []string{
			"Errores sistemáticos en estructuras básicas",
			"Conjugaciones incorrectas de verbos regulares en presente",
			"Confusión constante ser/estar, por/para",
		},
		MaxScores: map[string]int{"muchos_errores": 4, "errores_moderados": 6, "pocos_errores": 7},
	},
	"B1": {
		Level: "B1",
		Expected: []string{
			"Textos coherentes sobre temas familiares",
			"Uso adecuado de pasado, presente y futuro",
			"Introducción al subjuntivo en estructuras comunes",
			"Conectores para relacionar ideas (pero, porque, cuando, etc.)",
		},
		Acceptable: []string{
			"Uso incorrecto del subjuntivo en casos complejos",
			"Confusión ocasional en preposiciones menos comunes",
			"Fallos ocasionales en concordancia en estructuras complejas",
		},
		Unacceptable: []string{
			"Errores básicos en conjugaciones regulares",
			"Errores sistemáticos con artículos",
			"Errores graves con ser/estar, por/para",
			"Ausencia de conectores básicos",
		},
		MaxScores: map[string]int{"muchos_errores": 3, "errores_moderados": 5, "pocos_errores": 6},
		CriticalExamples: []CriticalExample{
			{Error: "Yo ir a la playa", Correction: "Yo voy a la playa"},
			{Error: "Nosotros quiere", Correction: "Nosotros queremos"},
			{Error: "Yo no gusta", Correction: "A mí no me gusta"},
			{Error: "Es muy calor", Correction: "Hace mucho calor"},
			{Error: "Cerca de mar", Correction: "Cerca del mar"},
		},
	},
	"B2": {
		Level: "B2",
		Expected: []string{
			"Textos claros y detallados sobre temas diversos",
			"Distinción entre usos de indicativo/subjuntivo",
			"Capacidad para argumentar y defender opiniones",
			"Variedad léxica y precisión en la expresión",
		},
		Acceptable: []string{
			"Algunos errores en estructuras complejas del subjuntivo",
			"Uso incorrecto ocasional de expresiones idiomáticas",
			"Imprecisiones estilísticas menores",
		},
		Unacceptable: []string{
			"Errores de concordancia básicos",
			"Fallos en conjugaciones regulares",
			"Conectores mal empleados",
		},
		MaxScores: map[string]int{"muchos_errores": 2, "errores_moderados": 4, "pocos_errores": 6},
		CriticalExamples: []CriticalExample{
			{Error: "Yo ha comido", Correction: "Yo he comido"},
			{Error: "La gente son", Correction: "La gente es"},
			{Error: "Yo pienso que es bueno que vienes", Correction: "Yo pienso que es bueno que vengas"},
			{Error: "Yo soy estudiando", Correction: "Yo estoy estudiando"},
		},
	},
	"C1": {
		Level: "C1",
		Expected: []string{
			"Textos bien estructurados y fluidos sobre temas complejos",
			"Control gramatical consistente",
			"Amplio repertorio léxico con expresiones idiomáticas",
			"Buena estructuración y cohesión textual",
		},
		Acceptable: []string{
			"Errores ocasionales en expresiones idiomáticas poco comunes",
			"Imprecisiones mínimas en estructuras muy complejas",
		},
		Unacceptable: []string{
			"Cualquier error gramatical básico o intermedio",
			"Vocabulario limitado o impreciso",
			"Conectores mal empleados",
		},
		MaxScores: map[string]int{"muchos_errores": 2, "errores_moderados": 3, "pocos_errores": 5},
		CriticalExamples: []CriticalExample{
			{Error: "Si tendría dinero, viajaría", Correction: "Si tuviera dinero, viajaría"},
			{Error: "Antes que llegue", Correction: "Antes de que llegue"},
		},
	},
	"C2": {
		Level: "C2",
		Expected: []string{
			"Precisión y naturalidad cercanas a las de un hablante nativo culto",
			"Expresión de matices de significado con exactitud",
			"Dominio de expresiones idiomáticas y coloquiales",
			"Textos cohesionados con estructura lógica clara",
		},
		Acceptable: []string{
			"Rarísimos fallos en expresiones muy idiomáticas",
			"Ocasionales imprecisiones en registros muy específicos",
		},
		Unacceptable: []string{
			"Prácticamente cualquier error gramatical",
			"Imprecisiones significativas en léxico",
			"Problemas de cohesión textual",
		},
		MaxScores: map[string]int{"muchos_errores": 1, "errores_moderados": 2, "pocos_errores": 4},
	},
}
