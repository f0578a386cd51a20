package wire

import (
	"errors"
	"math"
	"testing"
)

func TestRatePairRoundTrip(t *testing.T) {
	rates := []uint64{
		0,
		1,
		100_000_000,
		3_000_000_000,
		math.MaxUint32,
		math.MaxUint32 + 1,
		math.MaxUint64,
	}
	for _, rate := range rates {
		low, high := SplitRate(rate)
		if got := JoinRate(low, high); got != rate {
			t.Fatalf("rate round trip: got=%d want=%d (low=%#x high=%#x)", got, rate, low, high)
		}
	}
}

func TestRatePairWordOrder(t *testing.T) {
	low, high := SplitRate(0x1122334455667788)
	if low != 0x55667788 || high != 0x11223344 {
		t.Fatalf("rate words: low=%#x high=%#x", low, high)
	}
}

func TestPackNumRates(t *testing.T) {
	v := PackNumRates(3, RateFormatRange, 7)
	count, format, remaining := UnpackNumRates(v)
	if count != 3 || format != RateFormatRange || remaining != 7 {
		t.Fatalf("num_rates_flags mismatch: count=%d format=%d remaining=%d", count, format, remaining)
	}

	v = PackNumRates(12, RateFormatList, 0)
	count, format, remaining = UnpackNumRates(v)
	if count != 12 || format != RateFormatList || remaining != 0 {
		t.Fatalf("num_rates_flags mismatch: count=%d format=%d remaining=%d", count, format, remaining)
	}
}

func TestPackProtocolAttributes(t *testing.T) {
	v := PackProtocolAttributes(1, 4)
	if v != 0x0001_0004 {
		t.Fatalf("protocol attributes: got=%#x want=%#x", v, 0x00010004)
	}
	// Over-wide inputs must not bleed across fields.
	v = PackProtocolAttributes(0x1FF, 0x1_0002)
	if v != 0x00FF_0002 {
		t.Fatalf("protocol attributes masking: got=%#x", v)
	}
}

func TestEncodeNameTruncates(t *testing.T) {
	long := "averylongclockdevicename"
	b := EncodeName(long)
	if b[ClockNameLen-1] != 0 {
		t.Fatalf("name field not null-terminated: %v", b)
	}
	if got := DecodeName(b); got != long[:ClockNameLen-1] {
		t.Fatalf("name truncation: got=%q want=%q", got, long[:ClockNameLen-1])
	}

	short := EncodeName("uart")
	if got := DecodeName(short); got != "uart" {
		t.Fatalf("short name: got=%q", got)
	}
}

func TestRateSetRequestRoundTrip(t *testing.T) {
	in := RateSetRequest{
		Flags:    RateSetFlagRoundUp,
		ClockID:  2,
		RateLow:  0xDDCCBBAA,
		RateHigh: 0x00000001,
	}
	out, err := DecodeRateSetRequest(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("rate set mismatch: got=%+v want=%+v", out, in)
	}
	if out.Rate() != 0x1DDCCBBAA {
		t.Fatalf("rate: got=%#x", out.Rate())
	}
	if !out.RoundUp() || out.RoundAuto() || out.Async() {
		t.Fatalf("flag decode: %+v", out)
	}
}

func TestRateSetRequestUnknownFlags(t *testing.T) {
	r := RateSetRequest{Flags: 1 << 31}
	if !r.UnknownFlags() {
		t.Fatalf("bit 31 must be reported unknown")
	}
	r = RateSetRequest{Flags: RateSetFlagsMask}
	if r.UnknownFlags() {
		t.Fatalf("defined flags reported unknown")
	}
}

func TestConfigSetRequestBits(t *testing.T) {
	r := ConfigSetRequest{ClockID: 1, Attributes: ConfigSetFlagEnable}
	if !r.Enable() || r.UnknownAttributes() {
		t.Fatalf("enable decode: %+v", r)
	}
	r = ConfigSetRequest{Attributes: 0x2}
	if !r.UnknownAttributes() {
		t.Fatalf("bit 1 must be reported unknown")
	}
}

func TestDecodeSizeMismatch(t *testing.T) {
	if _, err := DecodeRateSetRequest(make([]byte, RateSetRequestLen-1)); !errors.Is(err, ErrPayloadSize) {
		t.Fatalf("rate set short payload: err=%v", err)
	}
	if _, err := DecodeConfigSetRequest(make([]byte, ConfigSetRequestLen+4)); !errors.Is(err, ErrPayloadSize) {
		t.Fatalf("config set long payload: err=%v", err)
	}
	if _, err := DecodeClockAttributesRequest(nil); !errors.Is(err, ErrPayloadSize) {
		t.Fatalf("attributes empty payload: err=%v", err)
	}
}

func TestClockAttributesResponseRoundTrip(t *testing.T) {
	in := ClockAttributesResponse{
		Status:     0,
		Attributes: PackClockAttributes(true),
		Name:       "pll_sys",
	}
	out, err := DecodeClockAttributesResponse(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("attributes mismatch: got=%+v want=%+v", out, in)
	}
}

func TestRatesPerPayload(t *testing.T) {
	cases := []struct {
		max  uint32
		want uint32
	}{
		{0, 0},
		{DescribeRatesHeaderLen - 1, 0},
		{DescribeRatesHeaderLen, 0},
		{DescribeRatesHeaderLen + RateEntryLen - 1, 0},
		{DescribeRatesHeaderLen + RateEntryLen, 1},
		{128, 15},
	}
	for _, tc := range cases {
		if got := RatesPerPayload(tc.max); got != tc.want {
			t.Fatalf("rates per payload(%d): got=%d want=%d", tc.max, got, tc.want)
		}
	}
}

func TestStatusOnly(t *testing.T) {
	b := StatusOnly(-10)
	if len(b) != WordLen {
		t.Fatalf("status-only length: %d", len(b))
	}
	s, err := DecodeStatus(b)
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if int32(s) != -10 {
		t.Fatalf("status: got=%d want=-10", s)
	}
}
