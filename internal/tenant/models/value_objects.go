package models

import "strconv"

// UserLimit is the resolved cap on professional users for a tenant. The
// zero value is unlimited.
type UserLimit struct {
	max *int
}

func Unlimited() UserLimit {
	return UserLimit{}
}

func LimitOf(n int) UserLimit {
	return UserLimit{max: &n}
}

// LimitFrom maps a nullable column to a limit; nil means unlimited.
func LimitFrom(n *int) UserLimit {
	if n == nil {
		return Unlimited()
	}
	return LimitOf(*n)
}

func (l UserLimit) IsUnlimited() bool {
	return l.max == nil
}

// Max returns the cap and false when unlimited.
func (l UserLimit) Max() (int, bool) {
	if l.max == nil {
		return 0, false
	}
	return *l.max, true
}

// Admits reports whether a tenant that already has current users may add one more.
func (l UserLimit) Admits(current int) bool {
	return l.max == nil || current < *l.max
}

func (l UserLimit) String() string {
	if l.max == nil {
		return "unlimited"
	}
	return strconv.Itoa(*l.max)
}
