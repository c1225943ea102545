package contract

// Basis points: 10000 bps = 100%.
const maxBps = 10_000

// FeeSplit is the exact distribution of a released amount. Floor division
// leaves any remainder with the seller; the three parts always sum to the
// full amount.
type FeeSplit struct {
	SheriffFee  int64 `json:"sheriff_fee"`
	PlatformFee int64 `json:"platform_fee"`
	SellerNet   int64 `json:"seller_net"`
}

// validateFeeRates rejects rates that could ever drive a seller payout
// negative. Checked at market creation and platform fee update, never at
// release time.
func validateFeeRates(sheriffBps, platformBps int) error {
	if sheriffBps < 0 || sheriffBps > maxBps {
		return invalidAmountf("sheriff fee %d bps out of range 0..%d", sheriffBps, maxBps)
	}
	if platformBps < 0 || platformBps > maxBps {
		return invalidAmountf("platform fee %d bps out of range 0..%d", platformBps, maxBps)
	}
	if sheriffBps+platformBps > maxBps {
		return invalidAmountf("combined fees %d bps exceed %d", sheriffBps+platformBps, maxBps)
	}
	return nil
}

func splitFees(amount int64, sheriffBps, platformBps int) FeeSplit {
	sheriffFee := feeOf(amount, sheriffBps)
	platformFee := feeOf(amount, platformBps)
	return FeeSplit{
		SheriffFee:  sheriffFee,
		PlatformFee: platformFee,
		SellerNet:   amount - sheriffFee - platformFee,
	}
}

// feeOf computes floor(amount*bps/10000) without the intermediate product,
// which overflows int64 for large amounts. Splitting the amount into
// quotient and remainder keeps every term within range: quotient*bps is at
// most the amount itself (bps <= 10000) and remainder*bps is below 10^8.
func feeOf(amount int64, bps int) int64 {
	b := int64(bps)
	return amount/maxBps*b + amount%maxBps*b/maxBps
}
