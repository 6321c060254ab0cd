package repo

import (
	"path"
	"strings"

	"github.com/quarrybuild/quarry/pkg/artifact"
)

// Layout composes repository-relative paths from coordinates. The same
// layout is used for remote URLs and the local repository, so local and
// remote trees mirror each other.
type Layout interface {
	// ArtifactPath returns the repository-relative path of the artifact.
	ArtifactPath(a artifact.Artifact) string
	// MetadataPath returns the repository-relative path of the metadata.
	// repositoryID distinguishes per-origin copies in the local repository;
	// pass "" for the remote-side path.
	MetadataPath(m artifact.Metadata, repositoryID string) string
}

// DefaultLayout lays out artifacts in the conventional
// group/name/version/name-version[-classifier].extension tree, with group
// dots expanded to directories.
type DefaultLayout struct{}

// ArtifactPath implements Layout.
func (DefaultLayout) ArtifactPath(a artifact.Artifact) string {
	c := a.Coordinate
	file := c.Name + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	ext := c.Extension
	if ext == "" {
		ext = "jar"
	}
	return path.Join(groupPath(c.Group), c.Name, c.Version, file+"."+ext)
}

// MetadataPath implements Layout. The file sits at the deepest level the
// metadata identifies: group, group/name or group/name/version.
func (DefaultLayout) MetadataPath(m artifact.Metadata, repositoryID string) string {
	dir := groupPath(m.Group)
	if m.Name != "" {
		dir = path.Join(dir, m.Name)
	}
	if m.Version != "" {
		dir = path.Join(dir, m.Version)
	}
	name := "metadata.xml"
	if repositoryID != "" {
		name = "metadata-" + repositoryID + ".xml"
	}
	return path.Join(dir, name)
}

func groupPath(group string) string {
	return strings.ReplaceAll(group, ".", "/")
}
