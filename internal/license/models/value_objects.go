package models

import (
	"strings"

	dErrors "clinictrack/pkg/domain-errors"
)

// Kind is the commercial tier of a license.
type Kind string

const (
	KindBasic  Kind = "basic"
	KindMedium Kind = "medium"
	KindPro    Kind = "pro"
	KindCustom Kind = "custom"
)

// kindAliases maps the spellings the back office has always used.
var kindAliases = map[string]Kind{
	"basica":  KindBasic,
	"básica":  KindBasic,
	"mediana": KindMedium,
}

// ParseKind accepts canonical kinds and the legacy aliases, case-insensitively.
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch k := Kind(v); k {
	case KindBasic, KindMedium, KindPro, KindCustom:
		return k, nil
	}
	if k, ok := kindAliases[v]; ok {
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown license kind: "+s)
}

// PresetMaxUsers returns the default seat count for a kind. Nil means unlimited.
func (k Kind) PresetMaxUsers() *int {
	var n int
	switch k {
	case KindBasic:
		n = 3
	case KindMedium:
		n = 7
	case KindPro:
		n = 10
	default:
		return nil
	}
	return &n
}

func (k Kind) String() string {
	return string(k)
}

// State is the stored lifecycle state of a license.
type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
	StateRevoked State = "revoked"
	StateExpired State = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateRevoked || s == StateExpired
}

// Outcome is the answer to "can this key be redeemed right now?".
type Outcome string

const (
	OutcomeNotFound        Outcome = "not_found"
	OutcomeExpired         Outcome = "expired"
	OutcomeRedeemable      Outcome = "redeemable"
	OutcomeAlreadyRedeemed Outcome = "already_redeemed"
	OutcomeRevoked         Outcome = "revoked"
)
