package report

import (
	"strings"
	"testing"
	"time"

	"github.com/gentanala/mes/internal/domain"
	"github.com/gentanala/mes/internal/engine"
)

func TestRupiah(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "Rp 0"},
		{950, "Rp 950"},
		{1250000, "Rp 1.250.000"},
		{2500000000, "Rp 2.500.000.000"},
		{-75000, "-Rp 75.000"},
	}
	for _, tt := range tests {
		if got := Rupiah(tt.amount); got != tt.want {
			t.Fatalf("Rupiah(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestDailyRecapContents(t *testing.T) {
	stats := engine.Stats{
		TotalWIP:     13,
		ReadyToShip:  3,
		SoldTodayQty: 2,
		RevenueToday: 2500000,
		SalesByChannel: map[domain.SalesChannel]int{
			domain.ChannelShopee:  1,
			domain.ChannelOffline: 1,
		},
		SplitsToday: 4,
		MergesToday: 2,
		RejectedQty: 5,
	}
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	out := Daily(stats, now)
	for _, want := range []string{
		"DAILY RECAP - Sat, 14 Mar 2026",
		"Work in progress: 13 pcs",
		"Ready to ship: 3 pcs",
		"Splits today: 4",
		"Assemblies today: 2",
		"Sold today: 2 pcs",
		"Revenue: Rp 2.500.000",
		"Shopee: 1 pcs",
		"Offline Store: 1 pcs",
		"Rejected to date: 5 pcs",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("recap missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Tokopedia") {
		t.Fatalf("recap lists channel with zero sales:\n%s", out)
	}
}
