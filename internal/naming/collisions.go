package naming

import (
	"errors"
	"fmt"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// CheckDistinct reports streams that would share a stage or a final table
// once their names are converted. Such streams would load into each other's
// table and clear each other's staged files. Exact duplicates are left to the
// caller.
func CheckDistinct(streams []bendsink.StreamConfig) error {
	n := NewPathNamer()
	stages := make(map[string]bendsink.StreamConfig, len(streams))
	tables := make(map[string]bendsink.StreamConfig, len(streams))

	var errs []error
	for _, s := range streams {
		ns := s.Namespace
		if ns == "" {
			ns = bendsink.DefaultNamespace
		}
		if s.Name == "" {
			continue
		}
		stage, err := n.StageName(ns, s.Name)
		if err != nil {
			continue
		}
		if prev, ok := stages[stage]; ok && prev.String() != s.String() {
			errs = append(errs, fmt.Errorf("streams %s and %s both map to stage %s: %w", prev, s, stage, bendsink.ErrInvalidConfig))
		} else if !ok {
			stages[stage] = s
		}

		table := n.transformer.RawTableName(s.Name)
		if prev, ok := tables[table]; ok && prev.String() != s.String() {
			errs = append(errs, fmt.Errorf("streams %s and %s both map to table %s: %w", prev, s, table, bendsink.ErrInvalidConfig))
		} else if !ok {
			tables[table] = s
		}
	}
	return errors.Join(errs...)
}
