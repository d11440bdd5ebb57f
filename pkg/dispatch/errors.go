package dispatch

import (
	"fmt"

	"github.com/lumenlab/axon/pkg/catalog"
)

// UnsupportedModelError reports a model display name that does not resolve
// against the catalog. User input error.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("model %q not supported", e.Model)
}

// ProviderUnavailableError reports that the resolved provider family has no
// usable adapter, e.g. missing credentials or an unreachable local runtime.
type ProviderUnavailableError struct {
	Family catalog.Family
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s has no available adapter", e.Family)
}
