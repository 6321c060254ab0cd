package errors

import "strings"

// Aggregate collects the per-item failures of one batch. It is returned
// alongside (never instead of) the batch's partial results, so callers can
// inspect what did resolve.
type Aggregate struct {
	Message string  // batch-level description, e.g. "failed to resolve 3 artifacts"
	Items   []error // per-item failures, in dispatch order
}

// NewAggregate builds an Aggregate from the non-nil entries of items.
// It returns nil when no entry failed, so it can be used directly as the
// batch's error result.
func NewAggregate(message string, items []error) *Aggregate {
	var failed []error
	for _, err := range items {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &Aggregate{Message: message, Items: failed}
}

// Error implements the error interface, listing every item failure.
func (a *Aggregate) Error() string {
	var b strings.Builder
	b.WriteString(a.Message)
	for _, err := range a.Items {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the item errors to errors.Is/As.
func (a *Aggregate) Unwrap() []error { return a.Items }

// Primary returns the deterministic primary cause of the batch failure.
// A true NOT_FOUND is preferred over a masking transfer or other error:
// when one repository is unreachable and another definitively lacks the
// item, the actionable cause is the absence, not the outage. Among equally
// ranked failures the first in dispatch order wins.
func (a *Aggregate) Primary() error {
	if len(a.Items) == 0 {
		return nil
	}
	for _, err := range a.Items {
		if Is(err, ErrCodeNotFound) {
			return err
		}
	}
	return a.Items[0]
}
