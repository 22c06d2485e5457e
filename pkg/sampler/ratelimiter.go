package sampler

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// RateLimiter is a token bucket with a fractional credit balance.
// The balance is replenished lazily on each CheckCredit call, there is no
// background timer. The bucket starts full, so the first maxBalance credits
// are available immediately.
type RateLimiter struct {
	mu sync.Mutex

	creditsPerSecond float64
	maxBalance       float64
	balance          float64
	lastTick         time.Time

	// 测试时替换
	now func() time.Time
}

func NewRateLimiter(creditsPerSecond, maxBalance float64) (*RateLimiter, error) {
	if err := checkRate("credits_per_second", creditsPerSecond); err != nil {
		return nil, err
	}
	if err := checkRate("max_balance", maxBalance); err != nil {
		return nil, err
	}
	return newRateLimiter(creditsPerSecond, maxBalance, time.Now), nil
}

func newRateLimiter(creditsPerSecond, maxBalance float64, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		creditsPerSecond: creditsPerSecond,
		maxBalance:       maxBalance,
		balance:          maxBalance,
		lastTick:         now(),
		now:              now,
	}
}

// CheckCredit tries to withdraw itemCost credits. It reports whether the
// balance was sufficient.
func (rl *RateLimiter) CheckCredit(itemCost float64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.updateBalance()
	if rl.balance < itemCost {
		return false
	}
	rl.balance -= itemCost
	return true
}

// Update changes the replenishment rate and ceiling. The current balance is
// scaled so it keeps the same proportion of the new ceiling.
func (rl *RateLimiter) Update(creditsPerSecond, maxBalance float64) error {
	if err := checkRate("credits_per_second", creditsPerSecond); err != nil {
		return err
	}
	if err := checkRate("max_balance", maxBalance); err != nil {
		return err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.updateBalance()
	rl.creditsPerSecond = creditsPerSecond
	if rl.maxBalance > 0 {
		rl.balance = maxBalance * rl.balance / rl.maxBalance
	} else {
		rl.balance = maxBalance
	}
	rl.maxBalance = maxBalance
	return nil
}

// 调用方需持有 rl.mu
func (rl *RateLimiter) updateBalance() {
	current := rl.now()
	elapsed := current.Sub(rl.lastTick).Seconds()
	rl.lastTick = current
	// 时钟回拨时不扣减
	if elapsed < 0 {
		return
	}
	rl.balance = math.Min(rl.maxBalance, rl.balance+elapsed*rl.creditsPerSecond)
}

func checkRate(name string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidConfiguration, name, v)
	}
	return nil
}
