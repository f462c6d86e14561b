package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ObjectCreatedPrefix prefixes the event name of every upload notification
// (cos:ObjectCreated:Put, cos:ObjectCreated:Post, ...).
const ObjectCreatedPrefix = "cos:ObjectCreated"

const contentTypeKey = "Content-Type"

// Batch is one notification delivery from the object storage trigger.
type Batch struct {
	Records []Record `json:"Records"`
}

// UnmarshalJSON decodes records one at a time. A record that does not decode
// is kept in place, carrying its error, so the rest of the batch survives.
func (b *Batch) UnmarshalJSON(data []byte) error {
	var raw struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Records == nil {
		b.Records = nil
		return nil
	}
	b.Records = make([]Record, len(raw.Records))
	for i, msg := range raw.Records {
		if err := json.Unmarshal(msg, &b.Records[i]); err != nil {
			b.Records[i] = Record{decodeErr: fmt.Errorf("%w: %w", ErrMalformedRecord, err)}
		}
	}
	return nil
}

// Record describes a single storage event.
type Record struct {
	Event *RecordEvent `json:"event,omitempty"`
	COS   *RecordCOS   `json:"cos,omitempty"`

	decodeErr error
}

// DecodeErr returns the error from decoding the record, if any.
func (r *Record) DecodeErr() error {
	return r.decodeErr
}

type RecordEvent struct {
	EventName    string `json:"eventName"`
	EventVersion string `json:"eventVersion,omitempty"`
	EventSource  string `json:"eventSource,omitempty"`
	EventTime    int64  `json:"eventTime,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
}

type RecordCOS struct {
	SchemaVersion   string     `json:"cosSchemaVersion,omitempty"`
	ConfigurationID string     `json:"cosNotificationId,omitempty"`
	Bucket          BucketInfo `json:"cosBucket"`
	Object          ObjectInfo `json:"cosObject"`
}

type BucketInfo struct {
	Name   string `json:"name"`
	Region string `json:"region"`
	AppID  string `json:"appid,omitempty"`
}

type ObjectInfo struct {
	Key  string            `json:"key"`
	Meta map[string]string `json:"meta,omitempty"`
	Size int64             `json:"size,omitempty"`
	URL  string            `json:"url,omitempty"`
	VID  string            `json:"vid,omitempty"`
}

// EventName returns the record's event label, or "" when the record carries
// no event section.
func (r *Record) EventName() string {
	if r.Event == nil {
		return ""
	}
	return r.Event.EventName
}

// IsObjectCreated reports whether the record is an upload notification.
func (r *Record) IsObjectCreated() bool {
	return strings.HasPrefix(r.EventName(), ObjectCreatedPrefix)
}

// ContentType looks up the declared content type of the object. The exact
// "Content-Type" key wins over case-insensitive matches.
func (r *Record) ContentType() (string, bool) {
	if r.COS == nil || r.COS.Object.Meta == nil {
		return "", false
	}
	meta := r.COS.Object.Meta
	if v, ok := meta[contentTypeKey]; ok {
		return v, true
	}
	for k, v := range meta {
		if http.CanonicalHeaderKey(k) == contentTypeKey {
			return v, true
		}
	}
	return "", false
}
