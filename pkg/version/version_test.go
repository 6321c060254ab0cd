package version

import (
	"errors"
	"testing"
)

func TestCompareOrdering(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "2.0", -1},
		{"1.2", "1.10", -1},
		{"2.0", "2.0", 0},
		{"1.0.1", "1.0", 1},
		{"1.5-SNAPSHOT", "1.5", -1}, // prerelease sorts below release
		{"weird", "1.0", -1},        // unparsable sorts below parsable
		{"alpha", "beta", -1},
	}
	for _, tt := range tests {
		if got := Parse(tt.a).Compare(Parse(tt.b)); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSortAscending(t *testing.T) {
	vs := []Version{Parse("1.8"), Parse("1.0"), Parse("1.2")}
	Sort(vs)
	want := []string{"1.0", "1.2", "1.8"}
	for i, w := range want {
		if vs[i].String() != w {
			t.Fatalf("Sort order %v, want %v", vs, want)
		}
	}
}

func TestIsSnapshotAndMeta(t *testing.T) {
	if !Parse("1.0-SNAPSHOT").IsSnapshot() {
		t.Error("1.0-SNAPSHOT should be a snapshot")
	}
	if Parse("1.0").IsSnapshot() {
		t.Error("1.0 should not be a snapshot")
	}
	if !Parse(MetaRelease).IsMeta() || !Parse(MetaLatest).IsMeta() {
		t.Error("RELEASE and LATEST are meta-versions")
	}
	if Parse("1.0").IsMeta() {
		t.Error("1.0 is not a meta-version")
	}
}

func TestParseConstraintSingleVersion(t *testing.T) {
	c, err := ParseConstraint("1.5")
	if err != nil {
		t.Fatalf("ParseConstraint: %v", err)
	}
	if c.IsRange() {
		t.Fatal("plain version must not be a range")
	}
	if !c.Matches(Parse("1.5")) {
		t.Error("recommendation should match identical version")
	}
	if c.Matches(Parse("1.6")) {
		t.Error("recommendation should not match other versions")
	}
}

func TestParseConstraintRange(t *testing.T) {
	c, err := ParseConstraint("[1.0,2.0)")
	if err != nil {
		t.Fatalf("ParseConstraint: %v", err)
	}
	if !c.IsRange() {
		t.Fatal("expected a range constraint")
	}
	for _, v := range []string{"1.0", "1.2", "1.9.9"} {
		if !c.Matches(Parse(v)) {
			t.Errorf("%s should match [1.0,2.0)", v)
		}
	}
	for _, v := range []string{"0.9", "2.0", "2.1"} {
		if c.Matches(Parse(v)) {
			t.Errorf("%s should not match [1.0,2.0)", v)
		}
	}
}

func TestParseConstraintUnionAndPin(t *testing.T) {
	c, err := ParseConstraint("(,1.0],[1.2,)")
	if err != nil {
		t.Fatalf("ParseConstraint: %v", err)
	}
	if !c.Matches(Parse("0.5")) || !c.Matches(Parse("1.0")) || !c.Matches(Parse("1.3")) {
		t.Error("union should match both segments")
	}
	if c.Matches(Parse("1.1")) {
		t.Error("1.1 falls in the gap and should not match")
	}

	pin, err := ParseConstraint("[2.5]")
	if err != nil {
		t.Fatalf("ParseConstraint: %v", err)
	}
	if !pin.Matches(Parse("2.5")) || pin.Matches(Parse("2.6")) {
		t.Error("[2.5] should match exactly 2.5")
	}
}

func TestParseConstraintErrors(t *testing.T) {
	for _, raw := range []string{"[1.0", "[2.0,1.0]", "(1.0)", "[1.0,2.0),"} {
		if _, err := ParseConstraint(raw); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseConstraint(%q) = %v, want ErrInvalidRange", raw, err)
		}
	}
}

func TestWithResolved(t *testing.T) {
	c, _ := ParseConstraint("[1.0,2.0)")
	if _, ok := c.Resolved(); ok {
		t.Fatal("fresh constraint must not be resolved")
	}
	r := c.WithResolved(Parse("1.2"))
	if v, ok := r.Resolved(); !ok || v.String() != "1.2" {
		t.Fatalf("Resolved = %v, %v", v, ok)
	}
	if _, ok := c.Resolved(); ok {
		t.Error("WithResolved must not mutate the receiver")
	}
}
