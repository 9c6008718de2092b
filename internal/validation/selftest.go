package validation

import (
	"strings"

	"github.com/ginjaninja78/naptan-xml-import/internal/locality"
)

// Case is one fixed validator check with its expected verdict.
type Case struct {
	Name    string
	Rule    Rule
	Value   string
	Context string
	Want    bool
}

// CaseResult records the verdict a Case actually produced.
type CaseResult struct {
	Case
	Got bool
}

// Passed reports whether the rule produced the expected verdict.
func (r CaseResult) Passed() bool {
	return r.Got == r.Want
}

// SelfTestCases returns the fixed suite run by `naptan-import selftest`.
func SelfTestCases() []Case {
	idx := locality.New([]string{"E0034964"})

	return []Case{
		{"code: valid airport gate", CodeRule{}, "9200HYDEPRK", "GAT", true},
		{"code: prefix 920 rejects BST", CodeRule{}, "9200HYDEPRK", "BST", false},
		{"code: prefix not four digits", CodeRule{}, "920HYDEPRK", "GAT", false},
		{"code: non-alphanumeric", CodeRule{}, "9200HYDE&RK", "GAT", false},
		{"code: longer than 12", CodeRule{}, "09200HYDEPARK", "GAT", false},
		{"code: fourth character not zero", CodeRule{}, "40HYDEPARK", "GAT", false},
		{"code: letters in prefix", CodeRule{}, "TESTHYDEPARK", "GAT", false},
		{"tiploc: letters", TiplocRule{}, "HYDPARK", "", true},
		{"tiploc: mixed", TiplocRule{}, "23DPK", "", true},
		{"tiploc: whitespace", TiplocRule{}, "HYDE PARK", "", false},
		{"tiploc: longer than 7", TiplocRule{}, "TESTHYDEPARK", "", false},
		{"length: empty", LengthRule{}, "", "", true},
		{"length: 100 characters", LengthRule{}, strings.Repeat("a", 100), "", true},
		{"length: 101 characters", LengthRule{}, strings.Repeat("a", 101), "", false},
		{"locality: known", LocalityRule{Index: idx}, "E0034964", "", true},
		{"locality: unknown", LocalityRule{Index: idx}, "E0000000", "", false},
	}
}

// SelfTest runs the fixed suite.
func SelfTest() []CaseResult {
	cases := SelfTestCases()
	results := make([]CaseResult, len(cases))
	for i, c := range cases {
		results[i] = CaseResult{Case: c, Got: Validate(c.Rule, c.Value, c.Context)}
	}
	return results
}
