package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"landreg-workers/pkg/recordschema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCheckBatchFile(t *testing.T) {
	v, err := recordschema.NewValidator(recordschema.Default())
	require.NoError(t, err)

	path := writeFile(t, "batch.json", `{
		"targetDistrict": 5,
		"caseOpeningNumber": "CO-1",
		"records": [
			{"type": "APPLICANT", "payload": {"identityNumber": "123456789012", "lastName": "RAKOTO"}},
			{"type": "PARCEL", "payload": {"vocation": "rice field"}},
			{"type": "DOSSIER", "payload": {}}
		]
	}`)

	var out bytes.Buffer
	bad, err := checkBatchFile(&out, v, path)
	require.NoError(t, err)
	assert.Equal(t, 2, bad)
	assert.Contains(t, out.String(), "lotIdentifier")
	assert.Contains(t, out.String(), "3 records, 2 invalid")

	_, err = checkBatchFile(&out, v, writeFile(t, "broken.json", "{"))
	assert.Error(t, err)
}

func TestBumpSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, mustDefaultJSON(t), 0644))

	require.NoError(t, bumpSchema(path, "parcel", "1.1.0"))

	reg, err := recordschema.LoadRegistry(path)
	require.NoError(t, err)
	for _, s := range reg.Schemas {
		if s.EntityType == "PARCEL" {
			assert.Equal(t, "1.1.0", s.Version)
		} else {
			assert.Equal(t, "1.0.0", s.Version)
		}
	}

	assert.Error(t, bumpSchema(path, "dossier", "2.0.0"))
}

func mustDefaultJSON(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "pkg", "recordschema", "schemas", "default.json"))
	require.NoError(t, err)
	return data
}
