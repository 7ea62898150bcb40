package payments

import (
	"fmt"
	"strings"
	"time"

	"server/internal/domain"
)

// NewReceipt derives the receipt metadata stamped onto a completed donation.
// The number is stable for a given donation, so replayed completions that
// somehow re-derive it cannot diverge.
func NewReceipt(donationID, baseURL string, now time.Time) domain.Receipt {
	compact := strings.ReplaceAll(donationID, "-", "")
	if len(compact) > 8 {
		compact = compact[:8]
	}
	generated := now.UTC()
	return domain.Receipt{
		Number:      fmt.Sprintf("NPO-%d-%s", generated.Year(), strings.ToUpper(compact)),
		URL:         strings.TrimRight(baseURL, "/") + "/" + donationID + ".pdf",
		GeneratedAt: &generated,
	}
}
