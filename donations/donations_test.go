package donations

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/failure"
	"github.com/pawtrack/pawtrack/memstore"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		cat  failure.Category
		ok   bool
	}{
		{"12.50", 1250, 0, true},
		{"$7", 700, 0, true},
		{"1,000.5", 100050, 0, true},
		{".99", 99, 0, true},
		{"0", 0, 0, true},
		{"12.345", 0, failure.MalformedInput, false},
		{"abc", 0, failure.MalformedInput, false},
		{"", 0, failure.MalformedInput, false},
		{"-5", 0, failure.Logical, false},
		{"184467440737095517.00", 0, failure.MalformedInput, false},
		{"92233720368547758.07", 0, failure.MalformedInput, false},
		{"92233720368547757.99", 9223372036854775799, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
			}
			continue
		}
		if err == nil || failure.CategoryOf(err) != tt.cat {
			t.Errorf("ParseAmount(%q) error = %v, want %s", tt.in, err, tt.cat)
		}
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(1250); got != "$12.50" {
		t.Errorf("FormatCents(1250) = %q", got)
	}
	if got := FormatCents(5); got != "$0.05" {
		t.Errorf("FormatCents(5) = %q", got)
	}
}

func TestRecordListTotal(t *testing.T) {
	store, err := memstore.New()
	if err != nil {
		t.Fatal(err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewService(store, logger)
	ctx := context.Background()

	if _, err := svc.Record(ctx, "Sam", "12.50", "for food"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Record(ctx, "Ana", "7", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Record(ctx, "Ana", "0.00", ""); !failure.Is(err, failure.Logical) {
		t.Errorf("zero amount: got %v", err)
	}
	if _, err := svc.Record(ctx, "", "5", ""); !failure.Is(err, failure.MalformedInput) {
		t.Errorf("missing donor: got %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
	total, err := svc.Total(ctx)
	if err != nil || total != 1950 {
		t.Errorf("Total = %d, %v", total, err)
	}
}
