package validation

import (
	"strings"
	"testing"

	"github.com/ginjaninja78/naptan-xml-import/internal/locality"
	"github.com/ginjaninja78/naptan-xml-import/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Code(t *testing.T) {
	tests := []struct {
		value   string
		context string
		want    bool
	}{
		{"9200HYDEPRK", "GAT", true},
		{"9200HYDEPRK", "BST", false},
		{"920HYDEPRK", "GAT", false},
		{"9200HYDE&RK", "GAT", false},
		{"09200HYDEPARK", "GAT", false},
		{"40HYDEPARK", "GAT", false},
		{"TESTHYDEPARK", "GAT", false},
		{"9200hydeprk", "GAT", true},
		{"9200HYDE PK", "GAT", false},
		{"9100ABC", "RPL", true},
		{"9100ABC", "BCT", false},
		{"0100BRA", "BCT", true}, // prefix outside the table
		{"0100", "BCT", false},   // too short
		{"1230", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.value+"/"+tt.context, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(CodeRule{}, tt.value, tt.context))
		})
	}
}

func TestValidate_Tiploc(t *testing.T) {
	assert.True(t, Validate(TiplocRule{}, "HYDPARK", ""))
	assert.True(t, Validate(TiplocRule{}, "23DPK", ""))
	assert.False(t, Validate(TiplocRule{}, "HYDE PARK", ""))
	assert.False(t, Validate(TiplocRule{}, "TESTHYDEPARK", ""))
	assert.False(t, Validate(TiplocRule{}, "H", ""))
}

func TestValidate_Length(t *testing.T) {
	assert.True(t, Validate(LengthRule{}, "", ""))
	assert.True(t, Validate(LengthRule{}, strings.Repeat("x", 100), ""))
	assert.False(t, Validate(LengthRule{}, strings.Repeat("x", 101), ""))
	assert.False(t, Validate(LengthRule{Max: 3}, "abcd", ""))
}

func TestValidate_Locality(t *testing.T) {
	rule := LocalityRule{Index: locality.New([]string{"E0034964"})}
	assert.True(t, Validate(rule, "E0034964", ""))
	assert.False(t, Validate(rule, "E0000001", ""))
	assert.False(t, Validate(LocalityRule{}, "E0034964", ""))
}

func TestValidator_ValidateRecord(t *testing.T) {
	v := New(locality.New([]string{"E0034964"}))

	rec := types.Record{
		"AtcoCode":        "9200HYDEPRK",
		"StopType":        "BST",
		"TiplocRef":       "HYDE PARK",
		"CommonName":      "Hyde Park",
		"NptgLocalityRef": "E0034964",
		"StopAreaRef":     types.MissingValue,
		"Landmark":        "anything goes",
	}

	errs := v.ValidateRecord(rec)
	require.Len(t, errs, 2)
	assert.Equal(t, "AtcoCode", errs[0].Field)
	assert.Equal(t, "code", errs[0].Rule)
	assert.Equal(t, "TiplocRef", errs[1].Field)
	assert.Contains(t, FormatErrors(errs), "field 'TiplocRef' failed tiploc check")

	rec["StopType"] = "GAT"
	rec["TiplocRef"] = "HYDPARK"
	assert.Empty(t, v.ValidateRecord(rec))
}

func TestValidator_WithIndex(t *testing.T) {
	v := New(nil)
	assert.False(t, v.ValidateField("NptgLocalityRef", "E0034964", ""))

	v2 := v.WithIndex(locality.New([]string{"E0034964"}))
	assert.True(t, v2.ValidateField("NptgLocalityRef", "E0034964", ""))
	// original untouched
	assert.False(t, v.ValidateField("NptgLocalityRef", "E0034964", ""))

	rule, ok := v2.RuleFor("AtcoCode")
	require.True(t, ok)
	assert.Equal(t, CodeRule{}, rule)
	assert.True(t, v2.ValidateField("Unchecked", "  ", ""))
}

func TestSelfTest(t *testing.T) {
	results := SelfTest()
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.True(t, r.Passed(), r.Name)
	}
}
