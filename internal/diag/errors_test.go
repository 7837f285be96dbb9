package diag

import (
	"fmt"
	"testing"

	"shapegen/internal/source"
)

func TestLocation_String(t *testing.T) {
	sp := source.Span{File: 1, Start: 3, End: 4}
	tests := []struct {
		name string
		loc  Location
		want string
	}{
		{"declaration", At("Point", sp), "Point"},
		{"named field", At("Point", sp).AtField("X", 0, sp), "Point field X (#0)"},
		{"tuple field", At("Pair", sp).AtField("", 1, sp), "Pair field #1"},
		{"variant field", At("Shape", sp).InVariant("Circle", sp).AtField("R", 0, sp), "Shape variant Circle field R (#0)"},
		{"nested variant", At("Expr", sp).InVariant("Unary", sp).InVariant("Neg", sp), "Expr variant Unary.Neg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	sp := source.Span{File: 1, Start: 10, End: 12}
	wrapped := fmt.Errorf("derive: %w", &CapabilityError{
		Code:       CapFieldUnsatisfied,
		Capability: "eq",
		Loc:        At("T", sp).AtField("F", 2, sp),
		Rule:       "field type must derive eq",
	})

	d, ok := FromError(wrapped)
	if !ok {
		t.Fatal("expected wrapped CapabilityError to convert")
	}
	if d.Code != CapFieldUnsatisfied || d.Primary != sp || d.Severity != SevError {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if !IsUserError(wrapped) {
		t.Error("CapabilityError must be a user error")
	}
	if IsUserError(&InternalInvariantViolation{}) {
		t.Error("InternalInvariantViolation must never be a user error")
	}
}

func TestCode_ID(t *testing.T) {
	cases := map[Code]string{
		ShpEmbeddedField:   "SHP1002",
		AtrUnknownKey:      "ATR2001",
		CapUnsupportedMode: "CAP3001",
		GateNoMode:         "GATE4001",
		IntInvariant:       "INT9001",
		UnknownCode:        "E0000",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Errorf("%d.ID() = %q, want %q", code, got, want)
		}
	}
}

func TestBag_SortAndDedup(t *testing.T) {
	b := NewBag(10)
	b.Add(NewError(CapFieldUnsatisfied, source.Span{File: 1, Start: 20, End: 21}, "late"))
	b.Add(NewError(AtrUnknownKey, source.Span{File: 1, Start: 5, End: 6}, "early"))
	b.Add(NewError(AtrUnknownKey, source.Span{File: 1, Start: 5, End: 6}, "early"))
	b.Sort()
	b.Dedup()
	if b.Len() != 2 {
		t.Fatalf("expected 2 diagnostics after dedup, got %d", b.Len())
	}
	if b.Items()[0].Message != "early" {
		t.Errorf("expected earliest span first, got %q", b.Items()[0].Message)
	}
	if !b.HasErrors() {
		t.Error("expected HasErrors")
	}
}
