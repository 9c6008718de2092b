package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `NptgLocalityCode,LocalityName,QualifierName
E0034964,Hyde Park,London
E0057898,"Marble Arch, West End",

 N0076879 ,Shorter row
`
	codes, err := Parse(strings.NewReader(input), DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, []string{"E0034964", "E0057898", "N0076879"}, codes)
}

func TestParse_Delimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		input     string
	}{
		{"tab", "\\t", "code\tname\nE0001\tA\n"},
		{"pipe", "pipe", "code|name\nE0001|A\n"},
		{"semicolon", ";", "code;name\nE0001;A\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, err := Parse(strings.NewReader(tt.input), Settings{Delimiter: tt.delimiter, HeaderRows: 1})
			require.NoError(t, err)
			assert.Equal(t, []string{"E0001"}, codes)
		})
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	codes, err := Parse(strings.NewReader("NptgLocalityCode\n"), DefaultSettings())
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localities.csv")
	require.NoError(t, os.WriteFile(path, []byte("code\nE0034964\n"), 0644))

	codes, err := ParseFile(path, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, []string{"E0034964"}, codes)

	_, err = ParseFile(filepath.Join(t.TempDir(), "absent.csv"), DefaultSettings())
	assert.Error(t, err)
}
