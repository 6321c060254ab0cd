package cli

import (
	"fmt"
	"strings"

	"github.com/quarrybuild/quarry/pkg/artifact"
)

// parseCoordinate parses the command-line coordinate syntax
// group:name[:extension[:classifier]]:version. The version segment may be
// a concrete version, a range like [1.0,2.0), or RELEASE/LATEST.
func parseCoordinate(s string) (artifact.Coordinate, error) {
	parts := strings.Split(s, ":")
	for _, p := range parts {
		if p == "" {
			return artifact.Coordinate{}, fmt.Errorf("invalid coordinate %q: empty segment", s)
		}
	}

	c := artifact.Coordinate{Extension: "jar"}
	switch len(parts) {
	case 3:
		c.Group, c.Name, c.Version = parts[0], parts[1], parts[2]
	case 4:
		c.Group, c.Name, c.Extension, c.Version = parts[0], parts[1], parts[2], parts[3]
	case 5:
		c.Group, c.Name, c.Extension, c.Classifier, c.Version = parts[0], parts[1], parts[2], parts[3], parts[4]
	default:
		return artifact.Coordinate{}, fmt.Errorf("invalid coordinate %q, expected group:name[:extension[:classifier]]:version", s)
	}
	return c, nil
}

// rootDependency builds the collection root for a coordinate given on the
// command line.
func rootDependency(c artifact.Coordinate, scope string) artifact.Dependency {
	return artifact.NewDependency(artifact.New(c), scope)
}
