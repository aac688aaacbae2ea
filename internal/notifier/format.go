package notifier

import (
	"fmt"
	"strings"

	"github.com/pauljones0/fly4deals/internal/models"
)

// FormatDeal renders a deal as the one-line message body. Commas are removed
// from the place names; an empty When drops the "in ..." segment.
func FormatDeal(d models.Deal) string {
	from := stripCommas(d.From)
	to := stripCommas(d.To)
	if d.When == "" {
		return fmt.Sprintf("A flight from %s to %s for %s", from, to, d.Price)
	}
	return fmt.Sprintf("A flight from %s to %s in %s for %s", from, to, d.When, d.Price)
}

func subject(d models.Deal) string {
	return fmt.Sprintf("New flight deal: %s → %s", d.From, d.To)
}

func stripCommas(s string) string {
	return strings.ReplaceAll(s, ",", "")
}
