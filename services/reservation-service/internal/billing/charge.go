package billing

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
)

// MinChargeCents is the smallest amount the gateway can capture. Stripe
// rejects anything below ~50 minor units in most currencies; guarding here
// turns a misconfigured price or deposit percentage into a clean client error.
const MinChargeCents = 50

var (
	// ErrNoCharge: the billing rule never initiates a charge (authorize).
	ErrNoCharge = errors.New("billing rule does not allow a charge")
	// ErrAmountTooSmall: the computed charge is below the gateway minimum.
	ErrAmountTooSmall = errors.New("charge amount below gateway minimum")
)

// ChargeAmount computes the up-front charge in integer minor units for a
// service's billing rule. Deposits round half-up on the percentage split.
func ChargeAmount(svc model.Service, priceCents int64) (int64, error) {
	switch svc.BillingRule {
	case model.BillingFull:
		return guardMinimum(priceCents)
	case model.BillingDeposit:
		pct := int64(svc.DepositPct)
		if pct <= 0 || pct > 100 {
			return 0, fmt.Errorf("invalid deposit percentage %d", svc.DepositPct)
		}
		return guardMinimum((priceCents*pct + 50) / 100)
	case model.BillingAuthorize:
		return 0, ErrNoCharge
	default:
		return 0, fmt.Errorf("unknown billing rule %q", svc.BillingRule)
	}
}

func guardMinimum(amount int64) (int64, error) {
	if amount < MinChargeCents {
		return 0, ErrAmountTooSmall
	}
	return amount, nil
}

// FeePolicy is the platform's global fee configuration. It is captured into
// the PaymentRecord metadata when a charge is created so that later policy
// changes never retroactively alter what a record says was charged.
type FeePolicy struct {
	PercentBps int64 // fee percentage in basis points
	FixedCents int64
}

func (p FeePolicy) Snapshot() map[string]string {
	return map[string]string{
		"fee_percent_bps": strconv.FormatInt(p.PercentBps, 10),
		"fee_fixed_cents": strconv.FormatInt(p.FixedCents, 10),
	}
}
