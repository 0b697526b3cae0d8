package memory

import (
	"testing"

	"github.com/mesh-intelligence/formtrack/internal/workbooktest"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

func TestWorkbookConformance(t *testing.T) {
	workbooktest.Run(t, func(t *testing.T) types.Workbook {
		return New()
	})
}
