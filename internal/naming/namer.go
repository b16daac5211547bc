// Package naming derives stage names and staging paths for a stream.
//
// A stream's identity is deterministic: the same connection ID, namespace,
// stream name and write hour always map to the same stage and path, so a
// retried flush lands next to the files of the first try.
package naming

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// PathNamer derives stage identities.
type PathNamer struct {
	transformer Transformer
}

// NewPathNamer creates a PathNamer using the default identifier transformer.
func NewPathNamer() *PathNamer {
	return &PathNamer{}
}

// Transformer returns the identifier transformer used for names.
func (n *PathNamer) Transformer() Transformer {
	return n.transformer
}

// StageName returns lower(convert(namespace) + "_" + convert(streamName)).
func (n *PathNamer) StageName(namespace, streamName string) (string, error) {
	if err := checkNames(namespace, streamName); err != nil {
		return "", err
	}
	name := n.transformer.ConvertStreamName(namespace) + "_" + n.transformer.ConvertStreamName(streamName)
	return strings.ToLower(name), nil
}

// StagingPath returns "YYYY/MM/DD/HH/<connectionID>/" for ts in UTC.
func (n *PathNamer) StagingPath(connectionID uuid.UUID, namespace, streamName string, ts time.Time) (string, error) {
	if err := checkNames(namespace, streamName); err != nil {
		return "", err
	}
	if connectionID == uuid.Nil {
		return "", bendsink.NewError(bendsink.KindNaming, "staging path", fmt.Errorf("connection id is empty"))
	}
	utc := ts.UTC()
	path := fmt.Sprintf("%d/%02d/%02d/%02d/%s/", utc.Year(), int(utc.Month()), utc.Day(), utc.Hour(), connectionID)
	return strings.ToLower(path), nil
}

// Identity derives both the stage name and the staging path.
func (n *PathNamer) Identity(connectionID uuid.UUID, namespace, streamName string, ts time.Time) (bendsink.StageIdentity, error) {
	stage, err := n.StageName(namespace, streamName)
	if err != nil {
		return bendsink.StageIdentity{}, err
	}
	path, err := n.StagingPath(connectionID, namespace, streamName, ts)
	if err != nil {
		return bendsink.StageIdentity{}, err
	}
	return bendsink.StageIdentity{StageName: stage, StagingPath: path}, nil
}

func checkNames(namespace, streamName string) error {
	if strings.TrimSpace(namespace) == "" {
		return bendsink.NewError(bendsink.KindNaming, "stage identity", fmt.Errorf("namespace is empty"))
	}
	if strings.TrimSpace(streamName) == "" {
		return bendsink.NewError(bendsink.KindNaming, "stage identity", fmt.Errorf("stream name is empty"))
	}
	return nil
}
