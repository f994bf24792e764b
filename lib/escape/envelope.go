package escape

import "go.mongodb.org/mongo-driver/bson"

// DateEnvelopeKey is the single key of a marked date envelope: any
// literal or computed date value that must travel through the
// pipeline as a string is wrapped {___date: <value>} so that result
// post-processing can tell it apart from an ordinary string column.
const DateEnvelopeKey = "___date"

// DateEnvelope wraps value as a marked date envelope.
func DateEnvelope(value any) bson.D {
	return bson.D{{Key: DateEnvelopeKey, Value: value}}
}

// AsDateEnvelope reports whether v is a single-key {___date: x} map
// and, if so, returns x.
func AsDateEnvelope(v any) (any, bool) {
	switch m := v.(type) {
	case bson.D:
		if len(m) == 1 && m[0].Key == DateEnvelopeKey {
			return m[0].Value, true
		}
	case bson.M:
		if len(m) == 1 {
			if val, ok := m[DateEnvelopeKey]; ok {
				return val, true
			}
		}
	case map[string]any:
		if len(m) == 1 {
			if val, ok := m[DateEnvelopeKey]; ok {
				return val, true
			}
		}
	}
	return nil, false
}
