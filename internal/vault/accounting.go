package vault

import "math/bits"

// checkedAdd returns a+b or an ArithmeticOverflow error. It never wraps
// and never clamps.
func checkedAdd(a, b uint64, what string) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, newError(ErrCodeArithmeticOverflow, "%s overflows: %d + %d", what, a, b)
	}
	return sum, nil
}

// applyDeposit records a deposit of amount. Deposits fund the vault but
// never authorize spend, so there is no ceiling check.
func applyDeposit(v *Vault, amount uint64, now int64) error {
	total, err := checkedAdd(v.TotalDeposited, amount, "total deposited")
	if err != nil {
		return err
	}
	v.TotalDeposited = total
	v.LastActivity = now
	return nil
}

// applyTrade charges fee+amount against the single spend ceiling.
// Nothing on v changes unless the whole spend fits.
func applyTrade(v *Vault, fee, amount uint64, now int64) (uint64, error) {
	spend, err := checkedAdd(fee, amount, "trade spend")
	if err != nil {
		return 0, err
	}
	used, err := checkedAdd(v.UsedAmount, spend, "used amount")
	if err != nil {
		return 0, err
	}
	if used > v.ApprovedAmount {
		return 0, newError(ErrCodeExceedsApproved, "spend %d would bring used to %d over approved %d", spend, used, v.ApprovedAmount)
	}
	v.UsedAmount = used
	v.LastActivity = now
	return spend, nil
}

// splitResidual divides the escrow left at cleanup between the cleaner
// (bps of it, rounded down) and the owner (the rest).
func splitResidual(residual, bps uint64) (toOwner, toCleaner uint64) {
	if bps == 0 || residual == 0 {
		return residual, 0
	}
	hi, lo := bits.Mul64(residual, bps)
	toCleaner, _ = bits.Div64(hi, lo, MaxRewardBps)
	return residual - toCleaner, toCleaner
}
