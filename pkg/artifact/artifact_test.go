package artifact

import "testing"

func TestCoordinateKeys(t *testing.T) {
	c := Coordinate{Group: "org.example", Name: "lib", Extension: "jar", Version: "1.0"}
	if c.Key() != "org.example:lib::jar" {
		t.Errorf("Key() = %s", c.Key())
	}
	if c.ID() != "org.example:lib::jar:1.0" {
		t.Errorf("ID() = %s", c.ID())
	}
	if c.WithVersion("2.0").Key() != c.Key() {
		t.Error("Key must be version-independent")
	}
}

func TestArtifactImmutability(t *testing.T) {
	a := New(Coordinate{Group: "g", Name: "n", Version: "1"})
	b := a.WithProperty("k", "v").WithFile("/tmp/n-1.jar")

	if a.IsResolved() {
		t.Error("original artifact must stay unresolved")
	}
	if a.Property("k", "") != "" {
		t.Error("original artifact must not see derived properties")
	}
	if !b.IsResolved() || b.Property("k", "") != "v" {
		t.Error("derived artifact lost its changes")
	}

	props := b.Properties()
	props["k"] = "tampered"
	if b.Property("k", "") != "v" {
		t.Error("Properties() must return a copy")
	}
}

func TestExclusionMatching(t *testing.T) {
	tests := []struct {
		excl  Exclusion
		coord Coordinate
		want  bool
	}{
		{Exclusion{Group: "g", Name: "n"}, Coordinate{Group: "g", Name: "n"}, true},
		{Exclusion{Group: "g", Name: "n"}, Coordinate{Group: "g", Name: "m"}, false},
		{Exclusion{Group: "*", Name: "n"}, Coordinate{Group: "other", Name: "n"}, true},
		{Exclusion{Group: "g", Name: "*"}, Coordinate{Group: "g", Name: "anything"}, true},
		{Exclusion{Group: "*", Name: "*"}, Coordinate{Group: "x", Name: "y"}, true},
	}
	for _, tt := range tests {
		if got := tt.excl.Matches(tt.coord); got != tt.want {
			t.Errorf("%v.Matches(%v) = %v, want %v", tt.excl, tt.coord, got, tt.want)
		}
	}
}

func TestDependencyDerivation(t *testing.T) {
	d := NewDependency(New(Coordinate{Group: "g", Name: "n", Version: "1"}), "")
	if d.EffectiveScope() != ScopeCompile {
		t.Errorf("EffectiveScope() = %s", d.EffectiveScope())
	}

	managed := d.WithScope(ScopeTest).WithVersion("2").
		AddExclusions(Exclusion{Group: "g2", Name: "bad"})

	if d.Scope != "" || d.Artifact.Coordinate.Version != "1" || len(d.Exclusions()) != 0 {
		t.Error("derivation must not mutate the declared dependency")
	}
	if managed.Scope != ScopeTest || managed.Artifact.Coordinate.Version != "2" {
		t.Error("derived dependency lost its overrides")
	}
	if !managed.Excludes(Coordinate{Group: "g2", Name: "bad"}) {
		t.Error("derived dependency should carry the exclusion")
	}
	if managed.Excludes(Coordinate{Group: "g2", Name: "good"}) {
		t.Error("unrelated coordinate should not be excluded")
	}
}

func TestMetadataNature(t *testing.T) {
	if rel := (Metadata{Group: "g", Nature: Release}); rel.Nature.IncludesSnapshots() {
		t.Error("release nature must exclude snapshots")
	}
	if m := (Metadata{Group: "g", Nature: Snapshot}); !m.Nature.IncludesSnapshots() {
		t.Error("snapshot nature must include snapshots")
	}
	m := Metadata{Group: "g", Name: "n"}
	if m.IsResolved() {
		t.Error("metadata without file is unresolved")
	}
	if !m.WithFile("/tmp/metadata.xml").IsResolved() {
		t.Error("WithFile should resolve the metadata")
	}
}
