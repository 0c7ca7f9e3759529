// Package report renders plain-text summaries for sharing outside the app,
// e.g. pasting a daily recap into a group chat.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/gentanala/mes/internal/domain"
	"github.com/gentanala/mes/internal/engine"
)

// channelOrder fixes the recap listing order; map iteration is random.
var channelOrder = []domain.SalesChannel{
	domain.ChannelShopee, domain.ChannelTokopedia, domain.ChannelWhatsApp,
	domain.ChannelOffline, domain.ChannelB2B, domain.ChannelKOLGift,
}

// Daily renders the end-of-day production and sales recap as plain text.
func Daily(stats engine.Stats, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DAILY RECAP - %s\n", now.Format("Mon, 2 Jan 2006"))
	b.WriteString("\n")

	b.WriteString("PRODUCTION\n")
	fmt.Fprintf(&b, "- Work in progress: %d pcs\n", stats.TotalWIP)
	fmt.Fprintf(&b, "- Ready to ship: %d pcs\n", stats.ReadyToShip)
	fmt.Fprintf(&b, "- Splits today: %d\n", stats.SplitsToday)
	fmt.Fprintf(&b, "- Assemblies today: %d\n", stats.MergesToday)
	b.WriteString("\n")

	b.WriteString("SALES\n")
	fmt.Fprintf(&b, "- Sold today: %d pcs\n", stats.SoldTodayQty)
	fmt.Fprintf(&b, "- Revenue: %s\n", Rupiah(stats.RevenueToday))
	for _, ch := range channelOrder {
		if qty := stats.SalesByChannel[ch]; qty > 0 {
			fmt.Fprintf(&b, "  - %s: %d pcs\n", domain.SalesChannelLabels[ch], qty)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Rejected to date: %d pcs\n", stats.RejectedQty)
	return b.String()
}

// Rupiah formats minor currency units with dot thousand separators, the way
// amounts are written locally: Rp 1.250.000.
func Rupiah(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	out := "Rp " + strings.Join(groups, ".")
	if negative {
		out = "-" + out
	}
	return out
}
