package model

// StudentProfile is the owner profile snapshot consumed by the prompt
// builder, the tool registry and the thread context refresh.
type StudentProfile struct {
	UserID         string         `json:"user_id,omitempty"`
	Level          string         `json:"nivel_mcer"`
	NativeLanguage string         `json:"idioma_nativo"`
	Goals          []string       `json:"objetivos_aprendizaje,omitempty"`
	Interests      []string       `json:"areas_interes,omitempty"`
	ErrorStats     map[string]int `json:"estadisticas_errores,omitempty"`
	Corrections    int            `json:"numero_correcciones"`
}

// DefaultProfile is used whenever no stored profile can be resolved.
func DefaultProfile(level string) StudentProfile {
	if level == "" {
		level = "B1"
	}
	return StudentProfile{
		Level:          level,
		NativeLanguage: "No especificado",
		ErrorStats:     map[string]int{},
	}
}

// UsageMetric captures one request's model usage for the metrics collection.
// Complete distinguishes replies that arrived with every required field from
// those the normalizer had to fill in.
type UsageMetric struct {
	Model       string  `json:"modelo"`
	ElapsedSecs float64 `json:"tiempo_respuesta"`
	InputLength int     `json:"longitud_texto"`
	Success     bool    `json:"resultado_exitoso"`
	Complete    bool    `json:"respuesta_completa"`
	Timestamp   int64   `json:"timestamp"`
}
