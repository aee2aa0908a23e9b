// ABOUTME: Tests for gateway request envelope construction.
// ABOUTME: Covers field wrapping, explicit nulls, and the __type discriminator.

package aria

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapEnvelope_KeySet(t *testing.T) {
	fields := map[string]any{
		"PatientId": "P-100",
		"CourseId":  float64(3),
		"Active":    true,
		"Comment":   nil,
	}

	env := WrapEnvelope("GetPatientCoursesRequest", fields)

	// Exactly {__type, Attributes} plus the input fields, nothing dropped or added.
	assert.Len(t, env, len(fields)+2)
	assert.Equal(t, "GetPatientCoursesRequest:"+Namespace, env["__type"])
	assert.Nil(t, env["Attributes"])

	for name, value := range fields {
		cell, ok := env[name].(map[string]any)
		require.True(t, ok, "field %s not wrapped", name)
		assert.Equal(t, value, cell["Value"], "field %s", name)
	}
}

func TestWrapEnvelope_ExplicitNullSurvivesEncoding(t *testing.T) {
	env := WrapEnvelope("UpdatePatientRequest", map[string]any{"MiddleName": nil})

	data, err := json.Marshal(env)
	require.NoError(t, err)

	// The remote API distinguishes an omitted field from an explicit null,
	// so the null cell must appear on the wire.
	assert.Contains(t, string(data), `"MiddleName":{"Value":null}`)
}

func TestWrapEnvelope_GetPatientsScenario(t *testing.T) {
	env := WrapEnvelope("GetPatientsRequest", map[string]any{
		"PatientId1": "123",
		"PatientId2": "",
	})

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	want := map[string]any{
		"__type":     "GetPatientsRequest:http://services.varian.com/AriaWebConnect/Link",
		"Attributes": nil,
		"PatientId1": map[string]any{"Value": "123"},
		"PatientId2": map[string]any{"Value": ""},
	}
	assert.Equal(t, want, got)
}

func TestWrapEnvelope_NoFields(t *testing.T) {
	env := WrapEnvelope("GetHospitalListRequest", nil)

	assert.Len(t, env, 2)
	assert.Equal(t, "GetHospitalListRequest:"+Namespace, env["__type"])
}
