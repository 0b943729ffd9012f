package tcms

import (
	"errors"

	"github.com/mesh-intelligence/nitrate/internal/tracker"
	"github.com/mesh-intelligence/nitrate/internal/xmlcase"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// invalidInputErrors are the sentinels raised for bad caller input.
var invalidInputErrors = []error{
	types.ErrInvalidID,
	types.ErrInvalidData,
	types.ErrInvalidFilter,
	types.ErrDuplicateName,
	types.ErrInvalidReference,
	types.ErrInvalidName,
	types.ErrInvalidStatus,
	types.ErrInvalidPriority,
	types.ErrInvalidAutomation,
	types.ErrInvalidURL,
	types.ErrInvalidContent,
	types.ErrInvalidObjectType,
	types.ErrInvalidCredential,
	ErrTrackerNotBound,
	ErrDuplicateIssue,
	ErrNotLinked,
	tracker.ErrInvalidKey,
	tracker.ErrUnknownService,
	xmlcase.ErrBadDocument,
	xmlcase.ErrBadVersion,
	xmlcase.ErrNoCases,
	xmlcase.ErrUnknownPriority,
	xmlcase.ErrUnknownStatus,
	xmlcase.ErrUnknownAutomated,
	xmlcase.ErrUnknownAuthor,
	xmlcase.ErrUnknownTester,
	xmlcase.ErrUnknownCategory,
	xmlcase.ErrMissingSummary,
}

// IsInvalidInput reports whether err stems from invalid caller input rather
// than a storage or server failure. Transports map it to their bad-request
// response.
func IsInvalidInput(err error) bool {
	for _, target := range invalidInputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
