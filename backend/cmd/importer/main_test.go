package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "sonar/backend/pkg/errors"
)

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDataset(t *testing.T) {
	path := writeDataset(t, `{
		"articles": [{"doi": "10.1000/a", "title": "Alpha", "journal": {"name": "Nature"}}],
		"authors": [{"name": "Ada"}],
		"citations": [{"citer": "10.1000/a", "citee": "10.1000/b"}],
		"authorships": [{"author": "Ada", "article": "10.1000/a"}]
	}`)

	ds, err := loadDataset(path)
	require.NoError(t, err)
	assert.Len(t, ds.Articles, 1)
	assert.Equal(t, "Nature", ds.Articles[0].Journal["name"])
	assert.Equal(t, "10.1000/b", ds.Citations[0].Citee)
}

func TestLoadDataset_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"articles": [`},
		{"unknown field", `{"papers": []}`},
		{"missing doi", `{"articles": [{"title": "no doi"}]}`},
		{"half citation", `{"citations": [{"citer": "10.1000/a"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadDataset(writeDataset(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadDataset_ValidationErrorIsTyped(t *testing.T) {
	_, err := loadDataset(writeDataset(t, `{"authors": [{"name": ""}]}`))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}

func TestLoadDataset_MissingFile(t *testing.T) {
	_, err := loadDataset(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
