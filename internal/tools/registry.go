package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spanishfactoria/textocorrector/internal/assistant"
	"github.com/spanishfactoria/textocorrector/internal/model"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// ProfileProvider resolves student profiles for the profile-backed tools.
type ProfileProvider interface {
	OwnerProfile(ctx context.Context, ownerID string) (model.StudentProfile, error)
}

// Handler services one tool call with already-decoded arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type tool struct {
	definition assistant.ToolDefinition
	handler    Handler
}

// Registry maps tool names to handlers and advertises their manifest to the
// remote assistant. The builtin tools cover the student profile, evaluation
// criteria, error statistics and assessment examples.
type Registry struct {
	profiles ProfileProvider
	tools    map[string]tool
	order    []string
}

// NewRegistry builds a Registry with the builtin tools registered.
func NewRegistry(profiles ProfileProvider) *Registry {
	r := &Registry{
		profiles: profiles,
		tools:    map[string]tool{},
	}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(name string, definition assistant.ToolDefinition, handler Handler) {
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool{definition: definition, handler: handler}
}

// Manifest returns the tool definitions in registration order, ready to be
// attached to an assistant.
func (r *Registry) Manifest() []assistant.ToolDefinition {
	defs := make([]assistant.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].definition)
	}
	return defs
}

// Execute services one tool call and returns its JSON payload. An unknown
// tool name yields an error payload instead of a failure so the run can
// continue; a handler error is surfaced to the caller.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (string, error) {
	entry, ok := r.tools[name]
	if !ok {
		logx.Warn().Str("tool", name).Msg("unknown tool requested")
		payload, _ := json.Marshal(map[string]string{"error": "Función no reconocida: " + name})
		return string(payload), nil
	}

	args := map[string]any{}
	if trimmed := strings.TrimSpace(arguments); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			return "", fmt.Errorf("tool %s: malformed arguments: %w", name, err)
		}
	}

	result, err := entry.handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("tool %s: marshal result: %w", name, err)
	}
	return string(payload), nil
}

func (r *Registry) registerBuiltins() {
	r.Register("get_user_profile", functionDef(
		"get_user_profile",
		"Obtiene el perfil completo del estudiante, incluyendo nivel MCER, idioma nativo, objetivos de aprendizaje, áreas de interés y estadísticas de errores previos.",
		map[string]any{
			"user_id": map[string]any{
				"type":        "string",
				"description": "ID del usuario cuyo perfil se quiere obtener.",
			},
		},
		[]string{"user_id"},
	), r.getUserProfile)

	r.Register("get_evaluation_criteria", functionDef(
		"get_evaluation_criteria",
		"Obtiene los criterios de evaluación específicos para un nivel MCER determinado.",
		map[string]any{
			"nivel_mcer": map[string]any{
				"type":        "string",
				"description": "Nivel MCER (A1, A2, B1, B2, C1, C2) para el cual se desean obtener los criterios de evaluación.",
				"enum":        []string{"A1", "A2", "B1", "B2", "C1", "C2"},
			},
		},
		[]string{"nivel_mcer"},
	), r.getEvaluationCriteria)

	r.Register("get_error_statistics", functionDef(
		"get_error_statistics",
		"Obtiene estadísticas detalladas de errores previos del estudiante.",
		map[string]any{
			"user_id": map[string]any{
				"type":        "string",
				"description": "ID del usuario cuyas estadísticas se quieren obtener.",
			},
		},
		[]string{"user_id"},
	), r.getErrorStatistics)

	r.Register("get_assessment_examples", functionDef(
		"get_assessment_examples",
		"Obtiene ejemplos concretos de errores críticos y evaluaciones para un nivel MCER específico.",
		map[string]any{
			"nivel_mcer": map[string]any{
				"type":        "string",
				"description": "Nivel MCER (A1, A2, B1, B2, C1, C2) para el cual se desean obtener ejemplos.",
				"enum":        []string{"A1", "A2", "B1", "B2", "C1", "C2"},
			},
			"tipo": map[string]any{
				"type":        "string",
				"description": "Tipo de ejemplos: 'errores' para errores críticos, 'puntuacion' para techos de puntuación, 'todos' para ambos.",
				"enum":        []string{"errores", "puntuacion", "todos"},
			},
		},
		[]string{"nivel_mcer"},
	), r.getAssessmentExamples)
}

func (r *Registry) getUserProfile(ctx context.Context, args map[string]any) (any, error) {
	userID, _ := args["user_id"].(string)
	profile, err := r.profiles.OwnerProfile(ctx, userID)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed, serving default")
		fallback := model.DefaultProfile("")
		return map[string]any{
			"error":                 "Perfil no encontrado",
			"nivel_mcer":            fallback.Level,
			"idioma_nativo":         fallback.NativeLanguage,
			"estadisticas_errores":  fallback.ErrorStats,
			"numero_correcciones":   0,
			"objetivos_aprendizaje": []string{},
		}, nil
	}
	logx.Info().Str("user_id", userID).Str("nivel", profile.Level).Msg("profile served to assistant")
	return profile, nil
}

func (r *Registry) getEvaluationCriteria(_ context.Context, args map[string]any) (any, error) {
	level, _ := args["nivel_mcer"].(string)
	return CriteriaFor(level), nil
}

func (r *Registry) getErrorStatistics(ctx context.Context, args map[string]any) (any, error) {
	userID, _ := args["user_id"].(string)
	profile, err := r.profiles.OwnerProfile(ctx, userID)
	if err != nil {
		return map[string]any{
			"error":                "Estadísticas no disponibles",
			"estadisticas_errores": map[string]int{},
			"total_errores":        0,
		}, nil
	}

	total := 0
	topCategory, topCount := "", 0
	for category, count := range profile.ErrorStats {
		total += count
		if count > topCount {
			topCategory, topCount = category, count
		}
	}
	return map[string]any{
		"estadisticas_errores":     profile.ErrorStats,
		"total_errores":            total,
		"categoria_mas_frecuente":  topCategory,
		"numero_correcciones":      profile.Corrections,
		"promedio_errores_por_texto": average(total, profile.Corrections),
	}, nil
}

func (r *Registry) getAssessmentExamples(_ context.Context, args map[string]any) (any, error) {
	level, _ := args["nivel_mcer"].(string)
	kind, _ := args["tipo"].(string)
	criteria := CriteriaFor(level)

	out := map[string]any{"nivel_mcer": criteria.Level}
	if kind == "errores" || kind == "todos" || kind == "" {
		out["ejemplos_criticos"] = criteria.CriticalExamples
	}
	if kind == "puntuacion" || kind == "todos" || kind == "" {
		out["puntuacion_maxima"] = criteria.MaxScores
	}
	return out, nil
}

func functionDef(name, description string, properties map[string]any, required []string) assistant.ToolDefinition {
	return assistant.ToolDefinition{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

func average(total, corrections int) float64 {
	if corrections == 0 {
		return 0
	}
	return float64(total) / float64(corrections)
}
