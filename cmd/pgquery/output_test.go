package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormkit/postgres-backend-go/backend"
)

func sampleResult() backend.QueryResult {
	return backend.QueryResult{
		Columns: []string{"id", "username"},
		Rows: []backend.Row{
			{"id": int64(1), "username": "alice"},
			{"id": int64(2), "username": "bob"},
		},
		AffectedRows: 2,
		Duration:     5 * time.Millisecond,
	}
}

func Test_WriteTable_ShouldRenderHeaderRowsAndFooter(t *testing.T) {
	// arrange
	var out strings.Builder

	// act
	err := writeResult(&out, outputTable, sampleResult())

	// assert
	require.NoError(t, err)
	rendered := out.String()
	assert.Contains(t, rendered, "id")
	assert.Contains(t, rendered, "username")
	assert.Contains(t, rendered, "alice")
	assert.Contains(t, rendered, "bob")
	assert.Contains(t, rendered, "(2 row(s))")
}

func Test_WriteTable_ShouldRenderAffectedCount_WithoutResultSet(t *testing.T) {
	// arrange
	var out strings.Builder

	// act
	err := writeResult(&out, outputTable, backend.QueryResult{AffectedRows: 3})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "OK, 3 row(s) affected\n", out.String())
}

func Test_WriteJSON_ShouldRenderRowsAsArray(t *testing.T) {
	// arrange
	var out strings.Builder

	// act
	err := writeResult(&out, outputJSON, sampleResult())

	// assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"username": "alice"`)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out.String()), "["))
}

func Test_WriteJSON_ShouldRenderAffectedCount_WithoutResultSet(t *testing.T) {
	// arrange
	var out strings.Builder

	// act
	err := writeResult(&out, outputJSON, backend.QueryResult{AffectedRows: 4})

	// assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"affected_rows": 4`)
}

func Test_WritePlain_ShouldRenderPipeSeparatedValues(t *testing.T) {
	// arrange
	var out strings.Builder

	// act
	err := writeResult(&out, outputPlain, sampleResult())

	// assert
	require.NoError(t, err)
	assert.Equal(t, "1|alice\n2|bob\n", out.String())
}

func Test_WritePlain_ShouldRenderNullMarker(t *testing.T) {
	// arrange
	var out strings.Builder
	result := backend.QueryResult{
		Columns: []string{"email"},
		Rows:    []backend.Row{{"email": nil}},
	}

	// act
	err := writeResult(&out, outputPlain, result)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "NULL\n", out.String())
}

func Test_WriteResult_ShouldFail_WithUnknownFormat(t *testing.T) {
	var out strings.Builder

	err := writeResult(&out, "xml", sampleResult())

	assert.Error(t, err)
}
