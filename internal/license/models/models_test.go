package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "clinictrack/pkg/domain-errors"
)

type LicenseModelSuite struct {
	suite.Suite
	now time.Time
}

func TestLicenseModelSuite(t *testing.T) {
	suite.Run(t, new(LicenseModelSuite))
}

func (s *LicenseModelSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func (s *LicenseModelSuite) TestNewLicense() {
	s.Run("takes preset seats from kind", func() {
		for kind, want := range map[Kind]int{KindBasic: 3, KindMedium: 7, KindPro: 10} {
			l, err := NewLicense(kind, "digest", nil, "", s.now)
			s.Require().NoError(err)
			s.Require().NotNil(l.MaxUsers)
			s.Equal(want, *l.MaxUsers, kind)
			s.Equal(StatePending, l.State)
		}
	})

	s.Run("custom is unlimited by default", func() {
		l, err := NewLicense(KindCustom, "digest", nil, "", s.now)
		s.Require().NoError(err)
		s.True(l.Unlimited())
	})

	s.Run("override replaces preset", func() {
		l, err := NewLicense(KindBasic, "digest", intPtr(25), "", s.now)
		s.Require().NoError(err)
		s.Equal(25, *l.MaxUsers)
	})

	s.Run("override below one is rejected", func() {
		_, err := NewLicense(KindBasic, "digest", intPtr(0), "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("empty digest leaves key unset", func() {
		l, err := NewLicense(KindPro, "", nil, "", s.now)
		s.Require().NoError(err)
		s.Nil(l.KeyDigest)
	})
}

func (s *LicenseModelSuite) TestParseKind() {
	cases := map[string]Kind{
		"basic":   KindBasic,
		"basica":  KindBasic,
		"BASICA":  KindBasic,
		"mediana": KindMedium,
		"medium":  KindMedium,
		" pro ":   KindPro,
		"custom":  KindCustom,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		s.Require().NoError(err, in)
		s.Equal(want, got, in)
	}

	_, err := ParseKind("platinum")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LicenseModelSuite) TestClassify() {
	past := s.now.Add(-time.Second)
	future := s.now.Add(time.Hour)

	s.Run("no expiry keeps stored state", func() {
		s.Equal(StatePending, Classify(&License{State: StatePending}, s.now))
		s.Equal(StateRevoked, Classify(&License{State: StateRevoked}, s.now))
	})

	s.Run("passed expiry wins over stored state", func() {
		s.Equal(StateExpired, Classify(&License{State: StateActive, ExpiresAt: &past}, s.now))
		s.Equal(StateExpired, Classify(&License{State: StatePending, ExpiresAt: &past}, s.now))
	})

	s.Run("expiry instant itself is expired", func() {
		at := s.now
		s.Equal(StateExpired, Classify(&License{State: StateActive, ExpiresAt: &at}, s.now))
	})

	s.Run("future expiry keeps stored state", func() {
		s.Equal(StateActive, Classify(&License{State: StateActive, ExpiresAt: &future}, s.now))
	})
}

func (s *LicenseModelSuite) TestOutcome() {
	past := s.now.Add(-time.Second)
	s.Equal(OutcomeRedeemable, (&License{State: StatePending}).Outcome(s.now))
	s.Equal(OutcomeAlreadyRedeemed, (&License{State: StateActive}).Outcome(s.now))
	s.Equal(OutcomeRevoked, (&License{State: StateRevoked}).Outcome(s.now))
	s.Equal(OutcomeExpired, (&License{State: StateExpired}).Outcome(s.now))
	s.Equal(OutcomeExpired, (&License{State: StateActive, ExpiresAt: &past}).Outcome(s.now))
}

func (s *LicenseModelSuite) TestActivate() {
	s.Run("pending license starts a one year term", func() {
		l := &License{State: StatePending}
		s.Require().NoError(l.Activate("ClinicA", s.now))
		s.Equal(StateActive, l.State)
		s.Equal("ClinicA", *l.TenantName)
		s.Equal(s.now, *l.ActivatedAt)
		s.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), *l.ExpiresAt)
	})

	s.Run("leap day rolls over to march", func() {
		leap := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
		s.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), ExpiryFor(leap))
	})

	s.Run("non-pending license cannot be activated", func() {
		for _, st := range []State{StateActive, StateRevoked, StateExpired} {
			l := &License{State: st}
			s.True(dErrors.HasCode(l.Activate("ClinicA", s.now), dErrors.CodeInvariantViolation), st)
		}
	})
}

func (s *LicenseModelSuite) TestRevoke() {
	l := &License{State: StatePending}
	s.Require().NoError(l.Revoke(s.now))
	s.Equal(StateRevoked, l.State)
	s.True(l.State.IsTerminal())

	active := &License{State: StateActive}
	s.True(dErrors.HasCode(active.Revoke(s.now), dErrors.CodeInvariantViolation))
}

func (s *LicenseModelSuite) TestNeedsExpiryWriteBack() {
	past := s.now.Add(-time.Minute)
	s.True((&License{State: StateActive, ExpiresAt: &past}).NeedsExpiryWriteBack(s.now))
	s.False((&License{State: StateExpired, ExpiresAt: &past}).NeedsExpiryWriteBack(s.now))
	s.False((&License{State: StateActive}).NeedsExpiryWriteBack(s.now))
}

func (s *LicenseModelSuite) TestNewBootstrapLicense() {
	l, err := NewBootstrapLicense(KindBasic, nil, "admin", s.now)
	s.Require().NoError(err)
	s.Nil(l.KeyDigest)
	s.True(l.Unlimited(), "no preset is applied")
	s.Equal(StateActive, Classify(l, s.now.AddDate(5, 0, 0)))
	s.Equal("admin", *l.TenantName)

	_, err = NewBootstrapLicense(KindBasic, intPtr(0), "admin", s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
