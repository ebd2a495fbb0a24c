package billing

import (
	"errors"
	"testing"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
)

func TestChargeAmount_Full(t *testing.T) {
	svc := model.Service{BillingRule: model.BillingFull}
	amount, err := ChargeAmount(svc, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 10000 {
		t.Fatalf("expected 10000, got %d", amount)
	}
}

func TestChargeAmount_Deposit(t *testing.T) {
	svc := model.Service{BillingRule: model.BillingDeposit, DepositPct: 50}
	amount, err := ChargeAmount(svc, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 5000 {
		t.Fatalf("expected 5000, got %d", amount)
	}
}

func TestChargeAmount_DepositRoundsHalfUp(t *testing.T) {
	svc := model.Service{BillingRule: model.BillingDeposit, DepositPct: 33}
	// 9999 * 33% = 3299.67 -> 3300
	amount, err := ChargeAmount(svc, 9999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 3300 {
		t.Fatalf("expected 3300, got %d", amount)
	}
}

func TestChargeAmount_AuthorizeNeverCharges(t *testing.T) {
	svc := model.Service{BillingRule: model.BillingAuthorize}
	if _, err := ChargeAmount(svc, 10000); !errors.Is(err, ErrNoCharge) {
		t.Fatalf("expected ErrNoCharge, got %v", err)
	}
}

func TestChargeAmount_BelowGatewayMinimum(t *testing.T) {
	svc := model.Service{BillingRule: model.BillingDeposit, DepositPct: 1}
	// 1% of 10.00 is 10 cents: uncapturable.
	if _, err := ChargeAmount(svc, 1000); !errors.Is(err, ErrAmountTooSmall) {
		t.Fatalf("expected ErrAmountTooSmall, got %v", err)
	}
}

func TestChargeAmount_InvalidDepositPct(t *testing.T) {
	for _, pct := range []int{0, -5, 101} {
		svc := model.Service{BillingRule: model.BillingDeposit, DepositPct: pct}
		if _, err := ChargeAmount(svc, 10000); err == nil {
			t.Fatalf("expected error for deposit_pct=%d", pct)
		}
	}
}

func TestFeePolicySnapshot(t *testing.T) {
	snap := FeePolicy{PercentBps: 250, FixedCents: 30}.Snapshot()
	if snap["fee_percent_bps"] != "250" || snap["fee_fixed_cents"] != "30" {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}
