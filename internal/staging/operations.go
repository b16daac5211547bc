package staging

import (
	"fmt"

	"github.com/vvka-141/bendsink/internal/janitor"
	"github.com/vvka-141/bendsink/internal/loader"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// Operations is the set of capabilities a flush uses against one destination.
// Loader is always present. Stager and Janitor are present in staging mode;
// insert mode writes rows through Loader alone.
type Operations struct {
	Mode    bendsink.LoadMode
	Loader  *loader.BatchLoader
	Stager  *Coordinator
	Janitor *janitor.StageJanitor
}

// NewOperations validates that mode has the capabilities it needs.
func NewOperations(mode bendsink.LoadMode, l *loader.BatchLoader, stager *Coordinator, j *janitor.StageJanitor) (*Operations, error) {
	if l == nil {
		return nil, fmt.Errorf("loader is required: %w", bendsink.ErrInvalidConfig)
	}
	switch mode {
	case bendsink.LoadModeStaging:
		if stager == nil || j == nil {
			return nil, fmt.Errorf("staging mode requires a stager and a janitor: %w", bendsink.ErrInvalidConfig)
		}
	case bendsink.LoadModeInsert:
	default:
		return nil, fmt.Errorf("unknown load mode %q: %w", mode, bendsink.ErrInvalidConfig)
	}
	return &Operations{Mode: mode, Loader: l, Stager: stager, Janitor: j}, nil
}

// Staging reports whether batches go through a stage.
func (o *Operations) Staging() bool {
	return o.Mode == bendsink.LoadModeStaging
}
