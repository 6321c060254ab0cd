package version

import (
	"fmt"
	"strings"
)

// ErrInvalidRange is wrapped by ParseConstraint errors for malformed range
// expressions.
var ErrInvalidRange = fmt.Errorf("invalid version range")

// interval is one half-open/closed segment of a range expression.
type interval struct {
	lower, upper       Version
	hasLower, hasUpper bool
	lowerInc, upperInc bool
}

func (iv interval) contains(v Version) bool {
	if iv.hasLower {
		c := v.Compare(iv.lower)
		if c < 0 || (c == 0 && !iv.lowerInc) {
			return false
		}
	}
	if iv.hasUpper {
		c := v.Compare(iv.upper)
		if c > 0 || (c == 0 && !iv.upperInc) {
			return false
		}
	}
	return true
}

func (iv interval) String() string {
	var b strings.Builder
	if iv.lowerInc {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if iv.hasLower {
		b.WriteString(iv.lower.String())
	}
	b.WriteByte(',')
	if iv.hasUpper {
		b.WriteString(iv.upper.String())
	}
	if iv.upperInc {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Constraint is a parsed version constraint: either a single recommended
// version (possibly a meta-version) or a union of interval ranges. Once the
// resolver has chosen a concrete version it is recorded via WithResolved.
type Constraint struct {
	raw       string
	intervals []interval // empty for single-version constraints
	resolved  Version
	isRes     bool
}

// ParseConstraint parses text such as "1.2", "RELEASE", "[1.0,2.0)" or
// "(,1.0],[1.2,)". A malformed range expression returns an error wrapping
// [ErrInvalidRange]; plain version text never fails.
func ParseConstraint(raw string) (Constraint, error) {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "[") && !strings.HasPrefix(text, "(") {
		return Constraint{raw: raw}, nil
	}

	c := Constraint{raw: raw}
	rest := text
	for rest != "" {
		end := strings.IndexAny(rest, ")]")
		if end < 0 {
			return Constraint{}, fmt.Errorf("%w %q: unterminated interval", ErrInvalidRange, raw)
		}
		iv, err := parseInterval(rest[:end+1])
		if err != nil {
			return Constraint{}, fmt.Errorf("%w %q: %v", ErrInvalidRange, raw, err)
		}
		c.intervals = append(c.intervals, iv)

		rest = rest[end+1:]
		if rest == "" {
			break
		}
		if !strings.HasPrefix(rest, ",") {
			return Constraint{}, fmt.Errorf("%w %q: expected ',' between intervals", ErrInvalidRange, raw)
		}
		rest = rest[1:]
		if rest == "" {
			return Constraint{}, fmt.Errorf("%w %q: trailing ','", ErrInvalidRange, raw)
		}
	}
	return c, nil
}

func parseInterval(text string) (interval, error) {
	iv := interval{
		lowerInc: strings.HasPrefix(text, "["),
		upperInc: strings.HasSuffix(text, "]"),
	}
	inner := text[1 : len(text)-1]
	lo, hi, ok := strings.Cut(inner, ",")
	if !ok {
		// "[1.0]" pins an exact version.
		if inner == "" {
			return interval{}, fmt.Errorf("empty interval")
		}
		if !iv.lowerInc || !iv.upperInc {
			return interval{}, fmt.Errorf("single-version interval must be closed")
		}
		v := Parse(inner)
		return interval{
			lower: v, upper: v,
			hasLower: true, hasUpper: true,
			lowerInc: true, upperInc: true,
		}, nil
	}
	if lo = strings.TrimSpace(lo); lo != "" {
		iv.lower = Parse(lo)
		iv.hasLower = true
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		iv.upper = Parse(hi)
		iv.hasUpper = true
	}
	if iv.hasLower && iv.hasUpper && iv.lower.Compare(iv.upper) > 0 {
		return interval{}, fmt.Errorf("lower bound %s above upper bound %s", iv.lower, iv.upper)
	}
	return iv, nil
}

// String returns the original constraint text.
func (c Constraint) String() string { return c.raw }

// IsRange reports whether the constraint is an interval range rather than a
// single recommended version.
func (c Constraint) IsRange() bool { return len(c.intervals) > 0 }

// IsMeta reports whether the constraint is a floating meta-version.
func (c Constraint) IsMeta() bool {
	return !c.IsRange() && Parse(c.raw).IsMeta()
}

// Recommended returns the single recommended version for non-range
// constraints. For ranges it returns the zero Version and false.
func (c Constraint) Recommended() (Version, bool) {
	if c.IsRange() {
		return Version{}, false
	}
	return Parse(c.raw), true
}

// Matches reports whether v satisfies the constraint. A single-version
// constraint is a recommendation and matches only the identical version; a
// range matches any version inside one of its intervals.
func (c Constraint) Matches(v Version) bool {
	if !c.IsRange() {
		return Parse(c.raw).Equal(v)
	}
	for _, iv := range c.intervals {
		if iv.contains(v) {
			return true
		}
	}
	return false
}

// WithResolved returns a copy of the constraint carrying the concrete
// version the resolver selected.
func (c Constraint) WithResolved(v Version) Constraint {
	c.resolved = v
	c.isRes = true
	return c
}

// Resolved returns the concrete version chosen for this constraint, if any.
func (c Constraint) Resolved() (Version, bool) {
	return c.resolved, c.isRes
}
