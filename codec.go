package cache

import (
	"encoding/json"
	"time"
)

// envelopeWire is the on-the-wire shape of CachedValue. Field names are
// explicit and stable; SoftExpireAt/HardExpireAt round-trip as RFC3339
// (ISO-8601) strings via time.Time's own JSON codec, and Value is kept as
// raw JSON so decoding it into the caller's concrete type is a separate,
// retryable step. Fresh/Stale/Expired are deliberately absent —
// they are derived, never persisted — but decoding tolerates their
// presence in a legacy payload because unknown JSON fields are ignored by
// default.
type envelopeWire struct {
	Value        json.RawMessage `json:"value"`
	SoftExpireAt time.Time       `json:"soft_expire_at"`
	HardExpireAt time.Time       `json:"hard_expire_at"`
}

func encodeEnvelope[T any](c CachedValue[T]) ([]byte, error) {
	raw, err := json.Marshal(c.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeWire{
		Value:        raw,
		SoftExpireAt: c.SoftExpireAt,
		HardExpireAt: c.HardExpireAt,
	})
}

func decodeEnvelope[T any](data []byte) (CachedValue[T], error) {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return CachedValue[T]{}, errDecodeMiss
	}
	value, err := decodeBare[T](wire.Value)
	if err != nil {
		return CachedValue[T]{}, err
	}
	return CachedValue[T]{
		Value:        value,
		SoftExpireAt: wire.SoftExpireAt,
		HardExpireAt: wire.HardExpireAt,
	}, nil
}

func encodeBare[T any](v T) ([]byte, error) {
	return json.Marshal(v)
}

// decodeBare recovers a value's type on the read path. Decoding straight
// into T already turns a generic JSON object/array into the concrete type
// when its fields match T. If that decode fails, the bytes are decoded into
// a generic value and re-marshaled/unmarshaled through it; that second
// attempt accepts the same inputs as the first, so it does not recover a
// value the first decode rejected. A failure is a decode miss, not an
// error, and is treated as a cache miss.
func decodeBare[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, errDecodeMiss
	}
	if err := json.Unmarshal(data, &v); err == nil {
		return v, nil
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return v, errDecodeMiss
	}
	coerced, err := json.Marshal(generic)
	if err != nil {
		return v, errDecodeMiss
	}
	if err := json.Unmarshal(coerced, &v); err != nil {
		return v, errDecodeMiss
	}
	return v, nil
}
