package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Command
	}{
		{"/start", Command{Kind: Start}},
		{"  /JOIN  ", Command{Kind: Join}},
		{"/keys@cipherpool_bot", Command{Kind: Keys}},
		{"/predict Will BTC close above 100k?", Command{Kind: Predict, Question: "Will BTC close above 100k?"}},
		{"/resolve 9f2c yes", Command{Kind: Resolve, MarketID: "9f2c", Outcome: true}},
		{"/resolve 9f2c NO", Command{Kind: Resolve, MarketID: "9f2c", Outcome: false}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in, "cipherpool_bot")
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]error{
		"hello":              ErrNotACommand,
		"/dance":             ErrUnknown,
		"/predict":           ErrMissingArgs,
		"/resolve abc":       ErrMissingArgs,
		"/resolve abc maybe": ErrBadOutcome,
		"/start@another_bot": ErrOtherBotName,
	}
	for in, want := range cases {
		_, err := Parse(in, "cipherpool_bot")
		require.ErrorIs(t, err, want, in)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "resolve", Resolve.String())
	assert.Equal(t, "unknown", Unknown.String())
}
