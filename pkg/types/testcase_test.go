package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestCaseValidate(t *testing.T) {
	valid := func() *TestCase {
		return &TestCase{Summary: "login works", Status: CaseStatusProposed, Priority: "P2"}
	}
	tests := []struct {
		name    string
		mutate  func(c *TestCase)
		wantErr error
	}{
		{name: "valid case", mutate: func(c *TestCase) {}},
		{name: "empty summary", mutate: func(c *TestCase) { c.Summary = "" }, wantErr: ErrInvalidName},
		{name: "bad status", mutate: func(c *TestCase) { c.Status = "DRAFT" }, wantErr: ErrInvalidStatus},
		{name: "bad priority", mutate: func(c *TestCase) { c.Priority = "P9" }, wantErr: ErrInvalidPriority},
		{name: "automation too high", mutate: func(c *TestCase) { c.IsAutomated = 3 }, wantErr: ErrInvalidAutomation},
		{name: "automation both", mutate: func(c *TestCase) { c.IsAutomated = AutomationBoth }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTestCaseSetStatus(t *testing.T) {
	c := &TestCase{Status: CaseStatusProposed}
	assert.NoError(t, c.SetStatus(CaseStatusConfirmed))
	assert.Equal(t, CaseStatusConfirmed, c.Status)
	assert.ErrorIs(t, c.SetStatus("nope"), ErrInvalidStatus)
	assert.Equal(t, CaseStatusConfirmed, c.Status)
}

func TestCaseTextSameContent(t *testing.T) {
	a := &CaseText{Action: "click", Effect: "ok"}
	b := &CaseText{Action: "click", Effect: "ok"}
	a.ComputeChecksums()
	b.ComputeChecksums()
	assert.True(t, a.SameContent(b))

	b.Setup = "boot"
	b.ComputeChecksums()
	assert.False(t, a.SameContent(b))
	assert.False(t, a.SameContent(nil))
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Checksum(""))
	assert.NotEqual(t, Checksum("a"), Checksum("b"))
}
