package simulator

import (
	"fmt"

	"github.com/kilianp07/edgegrid/core/asset"
)

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", asset.ErrInvalidArgument, fmt.Sprintf(format, args...))
}
