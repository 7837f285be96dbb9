package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestTimer_MeasureAndReport(t *testing.T) {
	tm := NewTimer()
	if err := tm.Measure(PhaseScan, func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := tm.Measure(PhaseDerive, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Measure returned %v", err)
	}
	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != PhaseScan || r.Phases[1].Note != "failed" {
		t.Fatalf("report = %+v", r)
	}
	if s := tm.Summary(); !strings.Contains(s, "derive") || !strings.Contains(s, "total") {
		t.Errorf("summary = %q", s)
	}
}

func TestTimer_NilIsNoop(t *testing.T) {
	var tm *Timer
	idx := tm.Begin(PhaseWrite)
	tm.End(idx, "")
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Errorf("nil timer reported %+v", r)
	}
}
