package tcms

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/nitrate/internal/xmlcase"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func TestIsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid status", err: types.ErrInvalidStatus, want: true},
		{name: "wrapped duplicate", err: fmt.Errorf("creating tags: %w", types.ErrDuplicateName), want: true},
		{name: "service sentinel", err: ErrDuplicateIssue, want: true},
		{name: "xml document", err: fmt.Errorf("case 2: %w", xmlcase.ErrUnknownAuthor), want: true},
		{name: "not found", err: types.ErrNotFound, want: false},
		{name: "permission", err: types.ErrPermissionDenied, want: false},
		{name: "storage failure", err: errors.New("disk I/O error"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInvalidInput(tt.err))
		})
	}
}
