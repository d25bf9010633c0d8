package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCustomerSegment(t *testing.T) {
	tests := []struct {
		name      string
		total     string
		purchases int
		want      CustomerSegment
	}{
		{name: "vip", total: "10000", purchases: 1, want: SegmentVIP},
		{name: "premium", total: "5000.00", purchases: 1, want: SegmentPremium},
		{name: "loyal by amount", total: "1000", purchases: 1, want: SegmentLoyal},
		{name: "loyal by count", total: "120", purchases: 5, want: SegmentLoyal},
		{name: "regular", total: "999.99", purchases: 4, want: SegmentRegular},
		{name: "new", total: "0", purchases: 0, want: SegmentRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Customer{TotalPurchases: decimal.RequireFromString(tt.total), PurchaseCount: tt.purchases}
			if got := c.Segment(); got != tt.want {
				t.Fatalf("Segment() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCustomerRegion(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{address: "12 Main St, Springfield, Oregon", want: "Oregon"},
		{address: "Lenina 1, Moscow ", want: "Moscow"},
		{address: "Somewhere, Texas, ", want: "Texas"},
		{address: "Berlin", want: "Berlin"},
		{address: "", want: UnknownRegion},
		{address: " , ", want: UnknownRegion},
	}

	for _, tt := range tests {
		c := Customer{Address: tt.address}
		if got := c.Region(); got != tt.want {
			t.Errorf("Region(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}
