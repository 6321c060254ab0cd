package cli

import (
	"testing"

	"github.com/quarrybuild/quarry/pkg/artifact"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    artifact.Coordinate
		wantErr bool
	}{
		{
			name:  "group name version",
			input: "org.example:lib:1.0",
			want:  artifact.Coordinate{Group: "org.example", Name: "lib", Extension: "jar", Version: "1.0"},
		},
		{
			name:  "with extension",
			input: "org.example:lib:pom:1.0",
			want:  artifact.Coordinate{Group: "org.example", Name: "lib", Extension: "pom", Version: "1.0"},
		},
		{
			name:  "with extension and classifier",
			input: "org.example:lib:jar:sources:1.0",
			want:  artifact.Coordinate{Group: "org.example", Name: "lib", Extension: "jar", Classifier: "sources", Version: "1.0"},
		},
		{
			name:  "range version",
			input: "org.example:lib:[1.0,2.0)",
			want:  artifact.Coordinate{Group: "org.example", Name: "lib", Extension: "jar", Version: "[1.0,2.0)"},
		},
		{
			name:  "meta version",
			input: "org.example:lib:RELEASE",
			want:  artifact.Coordinate{Group: "org.example", Name: "lib", Extension: "jar", Version: "RELEASE"},
		},
		{
			name:    "too few segments",
			input:   "org.example:lib",
			wantErr: true,
		},
		{
			name:    "too many segments",
			input:   "a:b:c:d:e:f",
			wantErr: true,
		},
		{
			name:    "empty segment",
			input:   "org.example::1.0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCoordinate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseCoordinate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCoordinate(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseCoordinate(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRootDependency(t *testing.T) {
	coord := artifact.Coordinate{Group: "g", Name: "n", Extension: "jar", Version: "1.0"}
	dep := rootDependency(coord, "compile")

	if dep.Artifact.Coordinate != coord {
		t.Errorf("coordinate = %+v, want %+v", dep.Artifact.Coordinate, coord)
	}
	if dep.EffectiveScope() != "compile" {
		t.Errorf("scope = %q, want compile", dep.EffectiveScope())
	}
}
