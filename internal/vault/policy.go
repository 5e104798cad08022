package vault

import "fmt"

// Default policy values, matching the deployed program.
const (
	DefaultExpiryThreshold = 3600
	DefaultDelegationTTL   = 3600
	DefaultFeeCollector    = Identity("fee-collector")
	DefaultVenue           = Identity("venue")

	// MaxRewardBps is 100% expressed in basis points.
	MaxRewardBps = 10_000
)

// Policy holds the tunables shared by every vault handled by a Service.
type Policy struct {
	// ExpiryThreshold is the minimum inactivity, in seconds, before an
	// inactive vault may be cleaned up.
	ExpiryThreshold int64

	// DelegationTTL bounds, in seconds, how long an approved delegate may
	// trade. Zero disables the bound.
	DelegationTTL int64

	// CleanerRewardBps is the share of the residual escrow paid to the
	// cleaner. The remainder goes to the owner.
	CleanerRewardBps uint64

	// FeeCollector receives trade fees.
	FeeCollector Identity

	// Venue receives the notional amount of executed trades.
	Venue Identity
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		ExpiryThreshold: DefaultExpiryThreshold,
		DelegationTTL:   DefaultDelegationTTL,
		FeeCollector:    DefaultFeeCollector,
		Venue:           DefaultVenue,
	}
}

// Validate rejects policies the accounting cannot honor.
func (p Policy) Validate() error {
	if p.ExpiryThreshold < 0 {
		return fmt.Errorf("expiry threshold must not be negative, got %d", p.ExpiryThreshold)
	}
	if p.DelegationTTL < 0 {
		return fmt.Errorf("delegation ttl must not be negative, got %d", p.DelegationTTL)
	}
	if p.CleanerRewardBps > MaxRewardBps {
		return fmt.Errorf("cleaner reward %d bps exceeds %d", p.CleanerRewardBps, MaxRewardBps)
	}
	if p.FeeCollector == "" || p.Venue == "" {
		return fmt.Errorf("fee collector and venue are required")
	}
	return nil
}

// Expired reports whether a vault last touched at lastActivity has been
// idle for at least threshold seconds at now. A clock reading behind
// lastActivity never counts as expired.
func Expired(now, lastActivity, threshold int64) bool {
	if now < lastActivity {
		return false
	}
	return now-lastActivity >= threshold
}
