// Package capture holds the captured-message value type and the bounded,
// multi-indexed in-memory store that records every publish the protocol
// adapter hands it.
package capture

import "time"

// AttributeValue is a single typed side-channel value attached to a
// message. DataType is whatever the client sent ("String", "Number",
// "Binary", or their ".Array" forms) and is stored verbatim; the capture
// store does not validate it against an enum. StringValue and BinaryValue
// are mutually exclusive in practice but neither is enforced absent.
type AttributeValue struct {
	DataType    string  `json:"data_type"`
	StringValue *string `json:"string_value,omitempty"`
	BinaryValue []byte  `json:"binary_value,omitempty"`
}

// Record is one captured publish. It is immutable after construction:
// nothing in this package mutates a Record's fields once Add has returned.
// An apparent "update" (same id published twice) is modeled as an evict
// of the old Record and an insert of a new one, never an in-place edit.
type Record struct {
	ID         string                     `json:"id"`
	Topic      string                     `json:"topic"`
	Body       string                     `json:"body"`
	Subject    string                     `json:"subject,omitempty"`
	Structure  string                     `json:"structure,omitempty"`
	DedupID    string                     `json:"dedup_id,omitempty"`
	GroupID    string                     `json:"group_id,omitempty"`
	Attributes map[string]AttributeValue `json:"attributes,omitempty"`
	Timestamp  time.Time                 `json:"timestamp"`
	// RawPayload is the verbatim original request body, kept for forensic
	// inspection. It is never re-encoded (no pretty-print and restore) and
	// is base64'd by encoding/json like any other []byte.
	RawPayload []byte `json:"raw_payload,omitempty"`
}

// clone returns a shallow value copy of r. Attributes is copied one level
// deep (new map, same AttributeValue values) so that a caller holding a
// snapshot returned from the store cannot mutate a live record's attribute
// set through it.
func (r Record) clone() Record {
	if r.Attributes != nil {
		attrs := make(map[string]AttributeValue, len(r.Attributes))
		for k, v := range r.Attributes {
			attrs[k] = v
		}
		r.Attributes = attrs
	}
	return r
}
