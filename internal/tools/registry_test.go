package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spanishfactoria/textocorrector/internal/model"
)

type fakeProfiles struct {
	profile model.StudentProfile
	err     error
}

func (f *fakeProfiles) OwnerProfile(context.Context, string) (model.StudentProfile, error) {
	return f.profile, f.err
}

func testProfile() model.StudentProfile {
	return model.StudentProfile{
		UserID:         "user_1",
		Level:          "B2",
		NativeLanguage: "Inglés",
		ErrorStats:     map[string]int{"gramatica": 7, "lexico": 2},
		Corrections:    3,
	}
}

func TestExecuteUserProfile(t *testing.T) {
	r := NewRegistry(&fakeProfiles{profile: testProfile()})

	out, err := r.Execute(context.Background(), "get_user_profile", `{"user_id":"user_1"}`)

	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "B2", decoded["nivel_mcer"])
	assert.Equal(t, "Inglés", decoded["idioma_nativo"])
}

func TestExecuteUserProfileFallsBackOnLookupFailure(t *testing.T) {
	r := NewRegistry(&fakeProfiles{err: fmt.Errorf("redis unreachable")})

	out, err := r.Execute(context.Background(), "get_user_profile", `{"user_id":"user_1"}`)

	require.NoError(t, err, "a missing profile yields a default, not a failure")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "B1", decoded["nivel_mcer"])
	assert.Contains(t, decoded, "error")
}

func TestExecuteEvaluationCriteria(t *testing.T) {
	r := NewRegistry(&fakeProfiles{})

	out, err := r.Execute(context.Background(), "get_evaluation_criteria", `{"nivel_mcer":"C1"}`)

	require.NoError(t, err)
	var decoded LevelCriteria
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "C1", decoded.Level)
	assert.NotEmpty(t, decoded.Unacceptable)
}

func TestExecuteEvaluationCriteriaUnknownLevelUsesB1(t *testing.T) {
	r := NewRegistry(&fakeProfiles{})

	out, err := r.Execute(context.Background(), "get_evaluation_criteria", `{"nivel_mcer":"Z9"}`)

	require.NoError(t, err)
	var decoded LevelCriteria
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded.Level, "B1")
}

func TestExecuteErrorStatistics(t *testing.T) {
	r := NewRegistry(&fakeProfiles{profile: testProfile()})

	out, err := r.Execute(context.Background(), "get_error_statistics", `{"user_id":"user_1"}`)

	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.EqualValues(t, 9, decoded["total_errores"])
	assert.Equal(t, "gramatica", decoded["categoria_mas_frecuente"])
	assert.EqualValues(t, 3, decoded["promedio_errores_por_texto"])
}

func TestExecuteAssessmentExamplesFilter(t *testing.T) {
	r := NewRegistry(&fakeProfiles{})

	out, err := r.Execute(context.Background(), "get_assessment_examples", `{"nivel_mcer":"B1","tipo":"errores"}`)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "ejemplos_criticos")
	assert.NotContains(t, decoded, "puntuacion_maxima")

	out, err = r.Execute(context.Background(), "get_assessment_examples", `{"nivel_mcer":"B1","tipo":"todos"}`)
	require.NoError(t, err)
	decoded = map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "ejemplos_criticos")
	assert.Contains(t, decoded, "puntuacion_maxima")
}

func TestExecuteUnknownToolReturnsErrorPayload(t *testing.T) {
	r := NewRegistry(&fakeProfiles{})

	out, err := r.Execute(context.Background(), "delete_everything", `{}`)

	require.NoError(t, err, "unknown tools answer with an error payload, the run continues")
	assert.Contains(t, out, "Función no reconocida")
}

func TestExecuteMalformedArguments(t *testing.T) {
	r := NewRegistry(&fakeProfiles{})

	_, err := r.Execute(context.Background(), "get_user_profile", `{user_id}`)
	assert.Error(t, err)
}

func TestManifestCoversBuiltins(t *testing.T) {
	r := NewRegistry(&fakeProfiles{})

	manifest := r.Manifest()
	require.Len(t, manifest, 4)

	names := make([]string, 0, len(manifest))
	for _, def := range manifest {
		fn := def["function"].(map[string]any)
		names = append(names, fn["name"].(string))
	}
	assert.Equal(t, []string{
		"get_user_profile",
		"get_evaluation_criteria",
		"get_error_statistics",
		"get_assessment_examples",
	}, names)
}
