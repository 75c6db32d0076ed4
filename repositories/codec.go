package repositories

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored as protobuf wire messages. Field numbers are part of the
// on-disk format: never renumber, only append.

type recordWriter struct {
	b []byte
}

func (w *recordWriter) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.BytesType)
	w.b = protowire.AppendString(w.b, v)
}

func (w *recordWriter) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, v)
}

func (w *recordWriter) bool(num protowire.Number, v bool) {
	w.uint(num, protowire.EncodeBool(v))
}

func (w *recordWriter) time(num protowire.Number, t time.Time) {
	if t.IsZero() {
		return
	}
	w.uint(num, uint64(t.UnixNano()))
}

// recordFields collects the scalar fields of a decoded record.
type recordFields struct {
	strings map[protowire.Number]string
	uints   map[protowire.Number]uint64
}

func readRecord(b []byte) (recordFields, error) {
	fields := recordFields{
		strings: make(map[protowire.Number]string),
		uints:   make(map[protowire.Number]uint64),
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fields, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fields, protowire.ParseError(n)
			}
			fields.strings[num] = v
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fields, protowire.ParseError(n)
			}
			fields.uints[num] = v
			b = b[n:]
		default:
			// Unknown wire type from a newer writer: skip it.
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fields, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return fields, nil
}

func (f recordFields) time(num protowire.Number) time.Time {
	v, ok := f.uints[num]
	if !ok {
		return time.Time{}
	}
	return time.Unix(0, int64(v)).UTC()
}

func (f recordFields) bool(num protowire.Number) bool {
	return protowire.DecodeBool(f.uints[num])
}
