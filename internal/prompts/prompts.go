// Package prompts centralizes the instruction texts sent to the assistant
// and the helpers that build per-request messages from them.
package prompts

import (
	"fmt"
	"strings"

	"github.com/spanishfactoria/textocorrector/internal/model"
)

// Task types routed to different assistants and system prompts.
const (
	TaskCorrection = "correccion_texto"
	TaskExercises  = "generacion_ejercicios"
)

const correctionSystem = `# Asistente de Corrección para ELE (Español como Lengua Extranjera)

Eres un profesor experto en enseñanza de español que corrige textos de estudiantes, adaptando tu feedback según su nivel (A1-C2).

## INSTRUCCIONES PRINCIPALES

1. Recibe un texto en español escrito por un estudiante junto con su nivel MCER
2. Analiza el texto buscando errores de gramática, léxico, puntuación y estructura
3. Proporciona una versión corregida del texto
4. Ofrece un breve análisis contextual (coherencia, cohesión, registro, adecuación cultural)
5. Da un consejo final personalizado para mejorar

Presta especial atención a los mensajes que contienen "PERFIL DEL ESTUDIANTE" o "CONTEXTO DEL ESTUDIANTE": incluyen el nivel MCER, el idioma nativo y las estadísticas de errores previos del estudiante. Usa las funciones disponibles (get_user_profile, get_evaluation_criteria, get_error_statistics, get_assessment_examples) cuando necesites esa información.

## FORMATO DE RESPUESTA
IMPORTANTE: Responde ÚNICAMENTE con un objeto JSON válido, con esta estructura exacta:

{
  "saludo": "string",            // en {idioma}, personalizado para el estudiante
  "tipo_texto": "string",        // en {idioma}, identifica el formato (email, narración, etc.)
  "errores": {
    "Gramática": [
      {"fragmento_erroneo": "string", "correccion": "string", "explicacion": "string"}  // explicacion en {idioma}
    ],
    "Léxico": [],
    "Puntuación": [],
    "Estructura textual": []
  },
  "texto_corregido": "string",   // siempre en español
  "analisis_contextual": {
    "coherencia": {"puntuacion": number, "comentario": "string"},
    "cohesion": {"puntuacion": number, "comentario": "string"},
    "registro_linguistico": {"puntuacion": number, "comentario": "string"},
    "adecuacion_cultural": {"puntuacion": number, "comentario": "string"}
  },
  "consejo_final": "string"      // siempre en español
}

## CRITERIOS DE EVALUACIÓN POR NIVEL

### A1-A2 (Principiante):
- Centrarse en errores básicos: artículos, género, número, presente de indicativo.
- Ser generoso con errores complejos.

### B1-B2 (Intermedio):
- Identificar errores en construcciones más complejas.
- Evaluar coherencia y cohesión textual.
- Nivel de exigencia moderado.

### C1-C2 (Avanzado):
- Evaluación exhaustiva y rigurosa.
- Identificar errores sutiles de matiz y problemas estilísticos.

## CONSEJOS PARA LA CORRECCIÓN

- Adapta siempre la severidad al nivel del estudiante.
- Clasifica cada error en su categoría correcta; no acumules todo en una sola.
- No inventes errores; solo corrige problemas reales.
- Las explicaciones DEBEN estar en {idioma}.

Tu respuesta debe comenzar con '{' y terminar con '}' sin ningún texto adicional antes o después.`

const correctionUltraConcise = `Eres un corrector experto de español como lengua extranjera (ELE).

ESTRUCTURA JSON OBLIGATORIA:
{
  "saludo": "string",            // en {idioma}
  "tipo_texto": "string",        // en {idioma}
  "errores": {
    "Gramática": [{"fragmento_erroneo": "string", "correccion": "string", "explicacion": "string"}],
    "Léxico": [],
    "Puntuación": [],
    "Estructura textual": []
  },
  "texto_corregido": "string",   // siempre en español
  "analisis_contextual": {
    "coherencia": {"puntuacion": number, "comentario": "string"},
    "cohesion": {"puntuacion": number, "comentario": "string"},
    "registro_linguistico": {"puntuacion": number, "comentario": "string"},
    "adecuacion_cultural": {"puntuacion": number, "comentario": "string"}
  },
  "consejo_final": "string"      // siempre en español
}

INSTRUCCIONES CRÍTICAS:
1. Corrige TODOS los errores y clasifícalos correctamente
2. Las explicaciones DEBEN estar en {idioma}
3. El texto corregido y consejo final SIEMPRE en español
4. Penaliza errores según nivel MCER

Responde ÚNICAMENTE con JSON válido, sin texto adicional antes ni después.`

const exercisesSystem = `# Asistente de Generación de Ejercicios ELE

Eres un profesor experto en crear materiales didácticos para estudiantes de español. Genera ejercicios personalizados según el nivel MCER y el área de mejora solicitada.

## INSTRUCCIONES

1. Crea ejercicios interactivos y pedagógicamente efectivos
2. Adapta la dificultad al nivel indicado (A1-C2)
3. Enfócate en el área específica solicitada
4. Incluye instrucciones claras, ejemplos y soluciones

Responde exclusivamente con un objeto JSON válido. No incluyas texto adicional fuera del JSON.`

// Correction returns the full correction system prompt with explanations in
// the given language.
func Correction(language string) string {
	return withLanguage(correctionSystem, language)
}

// UltraConcise returns the token-lean correction prompt, used on retry after
// a rate limit.
func UltraConcise(language string) string {
	return withLanguage(correctionUltraConcise, language)
}

// ForTask resolves the system prompt for a task type, defaulting to the
// correction prompt.
func ForTask(taskType, language string) string {
	switch taskType {
	case TaskExercises:
		return exercisesSystem
	default:
		return Correction(language)
	}
}

func withLanguage(prompt, language string) string {
	if language == "" {
		language = "español"
	}
	return strings.ReplaceAll(prompt, "{idioma}", language)
}

// UserMessage builds the per-request message carrying the student text.
func UserMessage(text, level, detail, language string) string {
	if level == "" {
		level = "B1"
	}
	if detail == "" {
		detail = "Intermedio"
	}
	if language == "" {
		language = "español"
	}
	return fmt.Sprintf(
		"Por favor, corrige el siguiente texto de nivel %s. "+
			"Nivel de detalle: %s. Idioma para explicaciones: %s.\n\n"+
			"TEXTO PARA CORREGIR:\n%q\n\n"+
			"Por favor, analiza y corrige todos los errores. Utiliza la función 'get_evaluation_criteria' "+
			"para obtener los criterios específicos para este nivel y 'get_user_profile' si necesitas "+
			"información detallada del estudiante.",
		level, detail, language, text)
}

// ContextRefresh builds the profile reminder injected into long-lived
// threads so the assistant keeps the student's situation present.
func ContextRefresh(profile model.StudentProfile) string {
	var b strings.Builder
	b.WriteString("CONTEXTO DEL ESTUDIANTE (actualización):\n")
	fmt.Fprintf(&b, "- Nivel MCER: %s\n", profile.Level)
	fmt.Fprintf(&b, "- Idioma nativo: %s\n", profile.NativeLanguage)
	fmt.Fprintf(&b, "- Correcciones realizadas: %d\n", profile.Corrections)
	if len(profile.ErrorStats) > 0 {
		b.WriteString("- Errores acumulados por tipo:\n")
		for category, count := range profile.ErrorStats {
			fmt.Fprintf(&b, "    %s: %d\n", category, count)
		}
	}
	b.WriteString("Ten en cuenta este contexto en tus próximas correcciones. No respondas a este mensaje.")
	return b.String()
}

// requiredTopFields and friends back the completeness check that flags
// replies the normalizer had to patch up.
var requiredTopFields = []string{
	"saludo", "tipo_texto", "errores",
	"texto_corregido", "analisis_contextual", "consejo_final",
}

var requiredErrorCategories = []string{"Gramática", "Léxico", "Puntuación", "Estructura textual"}

var requiredAnalysisAspects = []string{"coherencia", "cohesion", "registro_linguistico", "adecuacion_cultural"}

// IsComplete reports whether a raw record already carries every required
// field, category and analysis aspect.
func IsComplete(data map[string]any) bool {
	if data == nil {
		return false
	}
	for _, field := range requiredTopFields {
		if _, ok := data[field]; !ok {
			return false
		}
	}
	errores, ok := data["errores"].(map[string]any)
	if !ok {
		return false
	}
	for _, category := range requiredErrorCategories {
		if _, ok := errores[category]; !ok {
			return false
		}
	}
	analysis, ok := data["analisis_contextual"].(map[string]any)
	if !ok {
		return false
	}
	for _, aspect := range requiredAnalysisAspects {
		if _, ok := analysis[aspect]; !ok {
			return false
		}
	}
	return true
}
