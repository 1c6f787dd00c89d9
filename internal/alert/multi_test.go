package alert

import (
	"context"
	"errors"
	"testing"

	"controlling_tanks/internal/models"
)

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) Append(context.Context, models.SafetyEvent) error { c.n++; return c.err }
func (c *countingSink) Alert(context.Context, models.SafetyEvent) error  { c.n++; return c.err }

func TestMultiRecorder_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	a, b := &countingSink{err: boom}, &countingSink{}
	err := MultiRecorder{a, b}.Append(context.Background(), testEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if a.n != 1 || b.n != 1 {
		t.Fatalf("calls a=%d b=%d", a.n, b.n)
	}
	if err := (MultiRecorder{}).Append(context.Background(), testEvent()); err != nil {
		t.Fatalf("empty recorder: %v", err)
	}
}

func TestMultiNotifier_JoinsErrors(t *testing.T) {
	t.Parallel()

	e1, e2 := errors.New("webhook down"), errors.New("broker down")
	a, b := &countingSink{err: e1}, &countingSink{err: e2}
	err := MultiNotifier{a, b}.Alert(context.Background(), testEvent())
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("err = %v", err)
	}
}
