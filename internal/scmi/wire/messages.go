package wire

import (
	"github.com/danmuck/clockctl/internal/scmi"
)

// Exact request payload sizes, one per operation. The dispatcher rejects
// any payload whose length differs from the declared size.
const (
	ProtocolVersionRequestLen    = 0
	ProtocolAttributesRequestLen = 0
	MessageAttributesRequestLen  = WordLen
	ClockAttributesRequestLen    = WordLen
	DescribeRatesRequestLen      = 2 * WordLen
	RateSetRequestLen            = 4 * WordLen
	RateGetRequestLen            = WordLen
	ConfigSetRequestLen          = 2 * WordLen
)

// StatusOnly encodes the minimal response: a single status word.
func StatusOnly(s scmi.Status) []byte {
	b := make([]byte, WordLen)
	putWord(b, 0, uint32(s))
	return b
}

// DecodeStatus reads the leading status word of any response.
func DecodeStatus(b []byte) (scmi.Status, error) {
	if len(b) < WordLen {
		return 0, checkLen(b, WordLen)
	}
	return scmi.Status(word(b, 0)), nil
}

// MessageAttributesRequest asks whether one message id is implemented.
type MessageAttributesRequest struct {
	MessageID uint32
}

func DecodeMessageAttributesRequest(b []byte) (MessageAttributesRequest, error) {
	if err := checkLen(b, MessageAttributesRequestLen); err != nil {
		return MessageAttributesRequest{}, err
	}
	return MessageAttributesRequest{MessageID: word(b, 0)}, nil
}

func (r MessageAttributesRequest) Encode() []byte {
	b := make([]byte, MessageAttributesRequestLen)
	putWord(b, 0, r.MessageID)
	return b
}

// ClockAttributesRequest names one agent-visible clock.
type ClockAttributesRequest struct {
	ClockID uint32
}

func DecodeClockAttributesRequest(b []byte) (ClockAttributesRequest, error) {
	if err := checkLen(b, ClockAttributesRequestLen); err != nil {
		return ClockAttributesRequest{}, err
	}
	return ClockAttributesRequest{ClockID: word(b, 0)}, nil
}

func (r ClockAttributesRequest) Encode() []byte {
	b := make([]byte, ClockAttributesRequestLen)
	putWord(b, 0, r.ClockID)
	return b
}

// RateGetRequest names one agent-visible clock.
type RateGetRequest struct {
	ClockID uint32
}

func DecodeRateGetRequest(b []byte) (RateGetRequest, error) {
	if err := checkLen(b, RateGetRequestLen); err != nil {
		return RateGetRequest{}, err
	}
	return RateGetRequest{ClockID: word(b, 0)}, nil
}

func (r RateGetRequest) Encode() []byte {
	b := make([]byte, RateGetRequestLen)
	putWord(b, 0, r.ClockID)
	return b
}

// RateSetRequest carries the flags word first, then the clock id, then the
// rate pair.
type RateSetRequest struct {
	Flags    uint32
	ClockID  uint32
	RateLow  uint32
	RateHigh uint32
}

func DecodeRateSetRequest(b []byte) (RateSetRequest, error) {
	if err := checkLen(b, RateSetRequestLen); err != nil {
		return RateSetRequest{}, err
	}
	return RateSetRequest{
		Flags:    word(b, 0),
		ClockID:  word(b, 4),
		RateLow:  word(b, 8),
		RateHigh: word(b, 12),
	}, nil
}

func (r RateSetRequest) Encode() []byte {
	b := make([]byte, RateSetRequestLen)
	putWord(b, 0, r.Flags)
	putWord(b, 4, r.ClockID)
	putWord(b, 8, r.RateLow)
	putWord(b, 12, r.RateHigh)
	return b
}

func (r RateSetRequest) Rate() uint64 {
	return JoinRate(r.RateLow, r.RateHigh)
}

func (r RateSetRequest) Async() bool {
	return r.Flags&RateSetFlagAsync != 0
}

func (r RateSetRequest) RoundUp() bool {
	return r.Flags&RateSetFlagRoundUp != 0
}

func (r RateSetRequest) RoundAuto() bool {
	return r.Flags&RateSetFlagRoundAuto != 0
}

// UnknownFlags reports whether any undefined flag bit is set.
func (r RateSetRequest) UnknownFlags() bool {
	return r.Flags&^RateSetFlagsMask != 0
}

// ConfigSetRequest enables or disables one agent-visible clock.
type ConfigSetRequest struct {
	ClockID    uint32
	Attributes uint32
}

func DecodeConfigSetRequest(b []byte) (ConfigSetRequest, error) {
	if err := checkLen(b, ConfigSetRequestLen); err != nil {
		return ConfigSetRequest{}, err
	}
	return ConfigSetRequest{
		ClockID:    word(b, 0),
		Attributes: word(b, 4),
	}, nil
}

func (r ConfigSetRequest) Encode() []byte {
	b := make([]byte, ConfigSetRequestLen)
	putWord(b, 0, r.ClockID)
	putWord(b, 4, r.Attributes)
	return b
}

func (r ConfigSetRequest) Enable() bool {
	return r.Attributes&ConfigSetFlagEnable != 0
}

// UnknownAttributes reports whether any undefined attribute bit is set.
func (r ConfigSetRequest) UnknownAttributes() bool {
	return r.Attributes&^ConfigSetAttributesMask != 0
}

// DescribeRatesRequest asks for the rate list of one clock starting at
// rate_index.
type DescribeRatesRequest struct {
	ClockID   uint32
	RateIndex uint32
}

func DecodeDescribeRatesRequest(b []byte) (DescribeRatesRequest, error) {
	if err := checkLen(b, DescribeRatesRequestLen); err != nil {
		return DescribeRatesRequest{}, err
	}
	return DescribeRatesRequest{
		ClockID:   word(b, 0),
		RateIndex: word(b, 4),
	}, nil
}

func (r DescribeRatesRequest) Encode() []byte {
	b := make([]byte, DescribeRatesRequestLen)
	putWord(b, 0, r.ClockID)
	putWord(b, 4, r.RateIndex)
	return b
}

// VersionResponse answers a protocol version request.
type VersionResponse struct {
	Status  scmi.Status
	Version uint32
}

func (r VersionResponse) Encode() []byte {
	b := make([]byte, 2*WordLen)
	putWord(b, 0, uint32(r.Status))
	putWord(b, 4, r.Version)
	return b
}

func DecodeVersionResponse(b []byte) (VersionResponse, error) {
	if err := checkLen(b, 2*WordLen); err != nil {
		return VersionResponse{}, err
	}
	return VersionResponse{
		Status:  scmi.Status(word(b, 0)),
		Version: word(b, 4),
	}, nil
}

// AttributesResponse answers protocol attributes and message attributes
// requests.
type AttributesResponse struct {
	Status     scmi.Status
	Attributes uint32
}

func (r AttributesResponse) Encode() []byte {
	b := make([]byte, 2*WordLen)
	putWord(b, 0, uint32(r.Status))
	putWord(b, 4, r.Attributes)
	return b
}

func DecodeAttributesResponse(b []byte) (AttributesResponse, error) {
	if err := checkLen(b, 2*WordLen); err != nil {
		return AttributesResponse{}, err
	}
	return AttributesResponse{
		Status:     scmi.Status(word(b, 0)),
		Attributes: word(b, 4),
	}, nil
}

// ClockAttributesResponse carries the enabled bit and the truncated,
// null-terminated clock name.
type ClockAttributesResponse struct {
	Status     scmi.Status
	Attributes uint32
	Name       string
}

const ClockAttributesResponseLen = 2*WordLen + ClockNameLen

func (r ClockAttributesResponse) Encode() []byte {
	b := make([]byte, ClockAttributesResponseLen)
	putWord(b, 0, uint32(r.Status))
	putWord(b, 4, r.Attributes)
	name := EncodeName(r.Name)
	copy(b[8:], name[:])
	return b
}

func DecodeClockAttributesResponse(b []byte) (ClockAttributesResponse, error) {
	if err := checkLen(b, ClockAttributesResponseLen); err != nil {
		return ClockAttributesResponse{}, err
	}
	var name [ClockNameLen]byte
	copy(name[:], b[8:])
	return ClockAttributesResponse{
		Status:     scmi.Status(word(b, 0)),
		Attributes: word(b, 4),
		Name:       DecodeName(name),
	}, nil
}

// RateGetResponse carries a 64-bit rate as its wire pair.
type RateGetResponse struct {
	Status   scmi.Status
	RateLow  uint32
	RateHigh uint32
}

const RateGetResponseLen = 3 * WordLen

// NewRateGetResponse splits rate into the pair form.
func NewRateGetResponse(rate uint64) RateGetResponse {
	low, high := SplitRate(rate)
	return RateGetResponse{Status: scmi.StatusSuccess, RateLow: low, RateHigh: high}
}

func (r RateGetResponse) Encode() []byte {
	b := make([]byte, RateGetResponseLen)
	putWord(b, 0, uint32(r.Status))
	putWord(b, 4, r.RateLow)
	putWord(b, 8, r.RateHigh)
	return b
}

func (r RateGetResponse) Rate() uint64 {
	return JoinRate(r.RateLow, r.RateHigh)
}

func DecodeRateGetResponse(b []byte) (RateGetResponse, error) {
	if err := checkLen(b, RateGetResponseLen); err != nil {
		return RateGetResponse{}, err
	}
	return RateGetResponse{
		Status:   scmi.Status(word(b, 0)),
		RateLow:  word(b, 4),
		RateHigh: word(b, 8),
	}, nil
}

// DescribeRatesHeader is the fixed front of a describe-rates response; the
// rate entries follow it in the staged payload area.
type DescribeRatesHeader struct {
	Status        scmi.Status
	NumRatesFlags uint32
}

func (r DescribeRatesHeader) Encode() []byte {
	b := make([]byte, DescribeRatesHeaderLen)
	putWord(b, 0, uint32(r.Status))
	putWord(b, 4, r.NumRatesFlags)
	return b
}

func DecodeDescribeRatesHeader(b []byte) (DescribeRatesHeader, error) {
	if len(b) < DescribeRatesHeaderLen {
		return DescribeRatesHeader{}, checkLen(b, DescribeRatesHeaderLen)
	}
	return DescribeRatesHeader{
		Status:        scmi.Status(word(b, 0)),
		NumRatesFlags: word(b, 4),
	}, nil
}

// RateEntry is one (low, high) pair in a describe-rates response.
type RateEntry struct {
	Low  uint32
	High uint32
}

// NewRateEntry splits rate into its pair form.
func NewRateEntry(rate uint64) RateEntry {
	low, high := SplitRate(rate)
	return RateEntry{Low: low, High: high}
}

func (e RateEntry) Encode() []byte {
	b := make([]byte, RateEntryLen)
	putWord(b, 0, e.Low)
	putWord(b, 4, e.High)
	return b
}

func (e RateEntry) Rate() uint64 {
	return JoinRate(e.Low, e.High)
}

// DecodeRateEntries reads the rate pairs that follow a describe-rates
// header.
func DecodeRateEntries(b []byte, count int) ([]RateEntry, error) {
	if len(b) < count*RateEntryLen {
		return nil, checkLen(b, count*RateEntryLen)
	}
	out := make([]RateEntry, count)
	for i := range out {
		out[i] = RateEntry{
			Low:  word(b, i*RateEntryLen),
			High: word(b, i*RateEntryLen+4),
		}
	}
	return out, nil
}

// RatesPerPayload computes how many rate entries fit in one response given
// the transport's maximum payload size.
func RatesPerPayload(maxPayload uint32) uint32 {
	if maxPayload < DescribeRatesHeaderLen {
		return 0
	}
	return (maxPayload - DescribeRatesHeaderLen) / RateEntryLen
}
