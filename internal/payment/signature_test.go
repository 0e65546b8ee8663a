package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testSecret = []byte("whsec_test")

func TestVerifySignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"id":"evt_1"}`)
	valid := SignatureHeaderValue(body, testSecret, now)

	assert.NoError(t, VerifySignature(body, valid, testSecret, 5*time.Minute, now))

	rotated := "t=1700000000,v1=" + "00" + valid[len("t=1700000000,v1=")+2:] + "," + valid[len("t=1700000000,"):]
	assert.NoError(t, VerifySignature(body, rotated, testSecret, 5*time.Minute, now), "any v1 may match")

	cases := map[string]struct {
		body   []byte
		header string
		secret []byte
		now    time.Time
	}{
		"empty header":    {body, "", testSecret, now},
		"no v1":           {body, "t=1700000000", testSecret, now},
		"no timestamp":    {body, valid[len("t=1700000000,"):], testSecret, now},
		"bad timestamp":   {body, "t=abc,v1=00", testSecret, now},
		"modified body":   {[]byte(`{"id":"evt_2"}`), valid, testSecret, now},
		"wrong secret":    {body, valid, []byte("other"), now},
		"no secret":       {body, valid, nil, now},
		"too old":         {body, valid, testSecret, now.Add(6 * time.Minute)},
		"from the future": {body, valid, testSecret, now.Add(-6 * time.Minute)},
		"not hex":         {body, "t=1700000000,v1=zz", testSecret, now},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, VerifySignature(tc.body, tc.header, tc.secret, 5*time.Minute, tc.now), ErrInvalidSignature)
		})
	}
}
