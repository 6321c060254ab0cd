package resolve

import (
	"context"
	"encoding/xml"
	"os"

	"github.com/quarrybuild/quarry/pkg/artifact"
	"github.com/quarrybuild/quarry/pkg/collect"
	"github.com/quarrybuild/quarry/pkg/errors"
	"github.com/quarrybuild/quarry/pkg/repo"
)

// DescriptorReader reads an artifact's dependency descriptor by resolving
// its descriptor file (same coordinate, "pom" extension, no classifier) and
// parsing the declaration lists out of it. It implements the collector's
// descriptor reader.
type DescriptorReader struct {
	artifacts *ArtifactResolver
}

// NewDescriptorReader creates a descriptor reader resolving through the
// given artifact resolver.
func NewDescriptorReader(artifacts *ArtifactResolver) *DescriptorReader {
	return &DescriptorReader{artifacts: artifacts}
}

// ReadDescriptor implements collect.DescriptorReader.
func (r *DescriptorReader) ReadDescriptor(ctx context.Context, art artifact.Artifact, repos []repo.Remote) (collect.Descriptor, error) {
	descArt := artifact.New(artifact.Coordinate{
		Group:     art.Coordinate.Group,
		Name:      art.Coordinate.Name,
		Extension: "pom",
		Version:   art.Coordinate.Version,
	})
	res := r.artifacts.ResolveOne(ctx, ArtifactRequest{Artifact: descArt, Repositories: repos})
	if res.Err != nil {
		return collect.Descriptor{}, res.Err
	}
	return parseDescriptor(res.Artifact.File)
}

// Descriptor document subset: declared dependencies, the management table
// and an optional relocation.
type descriptorDoc struct {
	XMLName      xml.Name        `xml:"project"`
	Dependencies []dependencyDoc `xml:"dependencies>dependency"`
	Management   []dependencyDoc `xml:"dependencyManagement>dependencies>dependency"`
	Relocation   *relocationDoc  `xml:"distributionManagement>relocation"`
}

type dependencyDoc struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Type       string `xml:"type"`
	Classifier string `xml:"classifier"`
	Scope      string `xml:"scope"`
	Optional   bool   `xml:"optional"`
	Exclusions []struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
	} `xml:"exclusions>exclusion"`
}

type relocationDoc struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

func (d dependencyDoc) toDependency() artifact.Dependency {
	ext := d.Type
	if ext == "" {
		ext = "jar"
	}
	dep := artifact.NewDependency(artifact.New(artifact.Coordinate{
		Group:      d.GroupID,
		Name:       d.ArtifactID,
		Classifier: d.Classifier,
		Extension:  ext,
		Version:    d.Version,
	}), d.Scope).WithOptional(d.Optional)
	if len(d.Exclusions) > 0 {
		excl := make([]artifact.Exclusion, len(d.Exclusions))
		for i, e := range d.Exclusions {
			excl[i] = artifact.Exclusion{Group: e.GroupID, Name: e.ArtifactID}
		}
		dep = dep.WithExclusions(excl)
	}
	return dep
}

func parseDescriptor(path string) (collect.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return collect.Descriptor{}, errors.Wrap(errors.ErrCodeCollect, err, "read descriptor %s", path)
	}
	var doc descriptorDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return collect.Descriptor{}, errors.Wrap(errors.ErrCodeCollect, err, "parse descriptor %s", path)
	}

	var desc collect.Descriptor
	for _, d := range doc.Dependencies {
		desc.Dependencies = append(desc.Dependencies, d.toDependency())
	}
	for _, d := range doc.Management {
		desc.Managed = append(desc.Managed, d.toDependency())
	}
	if rel := doc.Relocation; rel != nil {
		// Unset fields inherit from the relocated coordinate.
		desc.Relocation = &artifact.Coordinate{
			Group:   rel.GroupID,
			Name:    rel.ArtifactID,
			Version: rel.Version,
		}
	}
	return desc, nil
}
