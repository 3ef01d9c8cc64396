package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateTrackingNumber(t *testing.T) {
	cases := []struct {
		name   string
		number string
		wantOK bool
	}{
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"ups style", "1Z999AA10123456784", true},
		{"fedex style", "61299998820821171811", true},
		{"shippo test transit", "SHIPPO_TRANSIT", true},
		{"shippo test delivered", "SHIPPO_DELIVERED", true},
		{"shippo test pre transit", "SHIPPO_PRE_TRANSIT", true},
		{"shippo test returned", "SHIPPO_RETURNED", true},
		{"shippo test failure", "SHIPPO_FAILURE", true},
		{"shippo test unknown", "SHIPPO_UNKNOWN", true},
		{"shippo unknown suffix", "SHIPPO_BOGUS", false},
		{"shippo bare prefix", "SHIPPO_", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTrackingNumber(tc.number)
			if tc.wantOK {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestIsTestTrackingNumber(t *testing.T) {
	require.True(t, IsTestTrackingNumber("SHIPPO_TRANSIT"))
	require.True(t, IsTestTrackingNumber("SHIPPO_BOGUS"))
	require.False(t, IsTestTrackingNumber("1Z999AA10123456784"))
}

func TestKnownStatus(t *testing.T) {
	require.True(t, KnownStatus(StatusDelivered))
	require.True(t, KnownStatus(StatusPreTransit))
	require.False(t, KnownStatus("SHIPPED"))
}
