package domain

// ─── Remotely Controlled Configuration ──────────────────────────────────────
// Earning rates, withdrawal rules, and app config are pushed by an
// external configuration store. Each is an immutable snapshot replaced
// wholesale on a change notification, never mutated field by field.

// EarningRates is the reward-rate snapshot used by every earning computation.
type EarningRates struct {
	// CheckinRewards[i] is the coin reward for streak day i+1 (7 entries).
	CheckinRewards []int64 `json:"checkin_rewards"`
	// SpinSegments is the reward wheel. Segment weights are implicit in
	// list repetition; the wheel picks uniformly over the list.
	SpinSegments []int64 `json:"spin_segments"`
	// VideoRewardMin/Max bound the per-video coin reward.
	VideoRewardMin int64 `json:"video_reward_min"`
	VideoRewardMax int64 `json:"video_reward_max"`
	// ReferralBonus is the coin reward credited to a referrer.
	ReferralBonus int64 `json:"referral_bonus"`
	// CoinToBDTRate converts coins to currency units (balance = coins / rate).
	CoinToBDTRate float64 `json:"coin_to_bdt_rate"`
}

// DefaultEarningRates returns the deployment defaults used when the
// configuration store is unreachable or has no override.
func DefaultEarningRates() EarningRates {
	return EarningRates{
		CheckinRewards: []int64{10, 10, 10, 10, 10, 10, 20},
		SpinSegments:   []int64{5, 10, 15, 20, 10, 5},
		VideoRewardMin: 5,
		VideoRewardMax: 10,
		ReferralBonus:  50,
		CoinToBDTRate:  20,
	}
}

// CoinRate returns the coin-to-currency divisor. A snapshot without a
// positive rate falls back to the deployment default so balance
// arithmetic never divides by zero.
func (r EarningRates) CoinRate() float64 {
	if r.CoinToBDTRate <= 0 {
		return DefaultEarningRates().CoinToBDTRate
	}
	return r.CoinToBDTRate
}

// CheckinReward returns the coin reward for the given streak day (1-based).
// Days beyond the table length pay the last entry.
func (r EarningRates) CheckinReward(day int) int64 {
	if len(r.CheckinRewards) == 0 {
		if day >= 7 {
			return 20
		}
		return 10
	}
	if day < 1 {
		day = 1
	}
	if day > len(r.CheckinRewards) {
		day = len(r.CheckinRewards)
	}
	return r.CheckinRewards[day-1]
}

// WithdrawalMethod is one payout channel (bKash, Nagad, ...).
type WithdrawalMethod struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// WithdrawalSettings is the withdrawal-rule snapshot.
type WithdrawalSettings struct {
	MinAmount      float64            `json:"min_amount"`
	MaxAmount      float64            `json:"max_amount"`
	DailyLimit     float64            `json:"daily_limit"`
	Methods        []WithdrawalMethod `json:"methods"`
	ProcessingTime string             `json:"processing_time"`
	Status         string             `json:"status"` // "active" enables withdrawals
}

// DefaultWithdrawalSettings returns the deployment defaults.
func DefaultWithdrawalSettings() WithdrawalSettings {
	return WithdrawalSettings{
		MinAmount:  50,
		MaxAmount:  10000,
		DailyLimit: 10000,
		Methods: []WithdrawalMethod{
			{ID: "bkash", Name: "bKash", Enabled: true},
			{ID: "nagad", Name: "Nagad", Enabled: true},
			{ID: "rocket", Name: "Rocket", Enabled: false},
		},
		ProcessingTime: "24-48 hours",
		Status:         "active",
	}
}

// Method looks up a payout method by ID.
func (s WithdrawalSettings) Method(id string) (WithdrawalMethod, bool) {
	for _, m := range s.Methods {
		if m.ID == id {
			return m, true
		}
	}
	return WithdrawalMethod{}, false
}

// AppConfig is the application-level control snapshot.
type AppConfig struct {
	MaintenanceMode    bool   `json:"maintenance_mode"`
	MaintenanceMessage string `json:"maintenance_message"`
	ForceUpdate        bool   `json:"force_update"`
	MinVersion         string `json:"min_version"`
	LatestVersion      string `json:"latest_version"`
	Announcement       string `json:"announcement,omitempty"`
}

// DefaultAppConfig returns the deployment defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		MaintenanceMessage: "Under maintenance",
		MinVersion:         "1.0.0",
		LatestVersion:      "2.0.0",
	}
}
