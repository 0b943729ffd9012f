package xmlcase

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// mapResolver resolves names from fixed maps.
type mapResolver struct {
	users      map[string]string
	categories map[string]string
}

func (r mapResolver) UserID(name string) (string, error) {
	if id, ok := r.users[name]; ok {
		return id, nil
	}
	return "", types.ErrNotFound
}

func (r mapResolver) CategoryID(name string) (string, error) {
	if id, ok := r.categories[name]; ok {
		return id, nil
	}
	return "", types.ErrNotFound
}

var resolver = mapResolver{
	users:      map[string]string{"alice@example.com": "u1", "bob": "u2"},
	categories: map[string]string{"--default--": "cat1", "Security": "cat2"},
}

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<testopia version="1.1">
  <testcase author="alice@example.com" priority="P1" automated="Automatic" status="CONFIRMED">
    <summary>Login rejects a bad password</summary>
    <categoryname>Security</categoryname>
    <defaulttester>bob</defaulttester>
    <notes>Run on staging</notes>
    <action>Enter a wrong password</action>
    <expectedresults>An error is shown</expectedresults>
    <setup>Create a user</setup>
    <breakdown>Delete the user</breakdown>
    <tag>auth</tag>
    <tag> smoke </tag>
    <testplan_reference type="xml_description">Release 1.0</testplan_reference>
  </testcase>
  <testcase author="bob" priority="P3" automated="" status="">
    <summary>Logout</summary>
    <categoryname>--default--</categoryname>
    <notes></notes>
    <action></action>
    <expectedresults></expectedresults>
    <setup></setup>
    <breakdown></breakdown>
  </testcase>
</testopia>
`

func TestDecodeValidate(t *testing.T) {
	doc, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, doc.Cases, 2)

	got, err := doc.Validate(resolver)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "Login rejects a bad password", first.Case.Summary)
	assert.Equal(t, types.CaseStatusConfirmed, first.Case.Status)
	assert.Equal(t, "P1", first.Case.Priority)
	assert.Equal(t, types.AutomationAutomated, first.Case.IsAutomated)
	assert.Equal(t, "u1", first.Case.AuthorID)
	assert.Equal(t, "u2", first.Case.DefaultTesterID)
	assert.Equal(t, "cat2", first.Case.CategoryID)
	assert.Equal(t, "An error is shown", first.Text.Effect)
	assert.Equal(t, []string{"auth", "smoke"}, first.Tags)

	second := got[1]
	assert.Equal(t, types.CaseStatusProposed, second.Case.Status, "empty status defaults to proposed")
	assert.Equal(t, types.AutomationManual, second.Case.IsAutomated)
	assert.Empty(t, second.Case.DefaultTesterID)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"not xml", "hello", ErrBadDocument},
		{"wrong root", `<cases version="1.1"></cases>`, ErrBadDocument},
		{"wrong version", `<testopia version="2.0"><testcase/></testopia>`, ErrBadVersion},
		{"missing version", `<testopia><testcase/></testopia>`, ErrBadVersion},
		{"no cases", `<testopia version="1.1"></testopia>`, ErrNoCases},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_AllOrNothing(t *testing.T) {
	valid := Case{Author: "bob", Priority: "P2", Summary: "ok", CategoryName: "--default--"}
	tests := []struct {
		name    string
		bad     Case
		wantErr error
	}{
		{"priority", Case{Author: "bob", Priority: "P7", Summary: "s", CategoryName: "--default--"}, ErrUnknownPriority},
		{"status", Case{Author: "bob", Priority: "P1", Status: "DONE", Summary: "s", CategoryName: "--default--"}, ErrUnknownStatus},
		{"automated", Case{Author: "bob", Priority: "P1", Automated: "Sometimes", Summary: "s", CategoryName: "--default--"}, ErrUnknownAutomated},
		{"author", Case{Author: "carol", Priority: "P1", Summary: "s", CategoryName: "--default--"}, ErrUnknownAuthor},
		{"tester", Case{Author: "bob", DefaultTester: "carol", Priority: "P1", Summary: "s", CategoryName: "--default--"}, ErrUnknownTester},
		{"category", Case{Author: "bob", Priority: "P1", Summary: "s", CategoryName: "Perf"}, ErrUnknownCategory},
		{"summary", Case{Author: "bob", Priority: "P1", Summary: "  ", CategoryName: "--default--"}, ErrMissingSummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{Version: Version, Cases: []Case{valid, tt.bad}}
			got, err := doc.Validate(resolver)
			assert.Nil(t, got, "no case is returned when any case fails")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "case 2:")
		})
	}
}

func TestValidate_ReportsEveryBadCase(t *testing.T) {
	doc := &Document{Version: Version, Cases: []Case{
		{Author: "carol", Priority: "P1", Summary: "a", CategoryName: "--default--"},
		{Author: "bob", Priority: "P9", Summary: "b", CategoryName: "--default--"},
	}}
	_, err := doc.Validate(resolver)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAuthor)
	assert.ErrorIs(t, err, ErrUnknownPriority)
	assert.Contains(t, err.Error(), "case 1:")
	assert.Contains(t, err.Error(), "case 2:")
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []Case{
		{
			Author:          "alice@example.com",
			Priority:        "P1",
			Automated:       FormatAutomated(types.AutomationBoth),
			Status:          types.CaseStatusConfirmed,
			Summary:         "Escaping <works> & stays intact",
			CategoryName:    "Security",
			DefaultTester:   "bob",
			Notes:           "multi\nline",
			Action:          "a",
			ExpectedResults: "e",
			Setup:           "s",
			Breakdown:       "b",
			Tags:            []string{"auth", "smoke"},
			PlanReferences:  []PlanRef{{Type: "xml_description", Name: "Release 1.0"}},
		},
		{Author: "bob", Priority: "P5", Automated: AutomatedManual, Status: types.CaseStatusProposed, Summary: "plain", CategoryName: "--default--"},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cases))
	assert.True(t, strings.HasPrefix(buf.String(), "<?xml"))
	assert.Contains(t, buf.String(), `<testopia version="1.1">`)

	doc, err := Decode(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(cases, doc.Cases); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFormatAutomated(t *testing.T) {
	for _, v := range []int{types.AutomationManual, types.AutomationAutomated, types.AutomationBoth} {
		got, err := ParseAutomated(FormatAutomated(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	got, err := ParseAutomated("1")
	require.NoError(t, err)
	assert.Equal(t, types.AutomationAutomated, got)
}
