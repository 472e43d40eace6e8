package linkz

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Origin tells how a tracer got its parent.
type Origin int

const (
	// OriginRoot means the tracer started a new trace.
	OriginRoot Origin = iota
	// OriginStack means the parent was on the creating goroutine's context stack.
	OriginStack
	// OriginTag means the parent came from an incoming tag.
	OriginTag
	// OriginLink means the parent came from an in-process link.
	OriginLink
)

func (o Origin) String() string {
	switch o {
	case OriginRoot:
		return "root"
	case OriginStack:
		return "stack"
	case OriginTag:
		return "tag"
	case OriginLink:
		return "link"
	default:
		return "unknown"
	}
}

// Record is the captured state of an ended tracer, handed to the Agent.
// Records are values; agents may keep them.
//
//nolint:govet // Field alignment optimized for JSON serialization order
type Record struct {
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Error      *ErrorInfo     `json:"error,omitempty"`
	Remote     *RemoteCall    `json:"remote,omitempty"`
	Database   *DatabaseCall  `json:"database,omitempty"`
	Web        *WebRequest    `json:"web,omitempty"`
	Message    *Message       `json:"message,omitempty"`
	Attributes []Attribute    `json:"attributes,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Kind       Kind           `json:"kind"`
	Origin     Origin         `json:"origin"`
	TraceID    trace.TraceID  `json:"trace_id"`
	SpanID     trace.SpanID   `json:"span_id"`
	ParentID   trace.SpanID   `json:"parent_id,omitempty"`
	Started    bool           `json:"started"`
}

// HasParent reports whether the record is linked to an upstream tracer.
func (r Record) HasParent() bool {
	return r.ParentID.IsValid()
}

// ErrorInfo is the error recorded on a tracer.
type ErrorInfo struct {
	Class   string `json:"class,omitempty"`
	Message string `json:"message,omitempty"`
}

// RemoteCall holds remote call and custom service fields.
type RemoteCall struct {
	Method   string  `json:"method"`
	Service  string  `json:"service"`
	Endpoint string  `json:"endpoint,omitempty"`
	Protocol string  `json:"protocol,omitempty"`
	Channel  Channel `json:"channel"`
}

// Unset marks a numeric exit field that was never set.
const Unset = -1

// DatabaseCall holds database request fields.
type DatabaseCall struct {
	Statement        string       `json:"statement"`
	Info             DatabaseInfo `json:"info"`
	ReturnedRowCount int32        `json:"returned_row_count"`
	RoundTripCount   int32        `json:"round_trip_count"`
}

// Header is one name/value pair. Order and duplicates are preserved.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebRequest holds incoming and outgoing web request fields.
type WebRequest struct {
	Application     *WebApplicationInfo `json:"application,omitempty"`
	URL             string              `json:"url"`
	Method          string              `json:"method"`
	RemoteAddress   string              `json:"remote_address,omitempty"`
	RequestHeaders  []Header            `json:"request_headers,omitempty"`
	ResponseHeaders []Header            `json:"response_headers,omitempty"`
	Parameters      []Header            `json:"parameters,omitempty"`
	StatusCode      int32               `json:"status_code"`
}

// Message holds messaging fields.
type Message struct {
	VendorMessageID string              `json:"vendor_message_id,omitempty"`
	CorrelationID   string              `json:"correlation_id,omitempty"`
	System          MessagingSystemInfo `json:"system"`
}

// Attribute is a custom request attribute. Value is an int64, float64 or string.
type Attribute struct {
	Value any    `json:"value"`
	Key   string `json:"key"`
}

// clone deep-copies slices and pointers so a record can outlive its tracer.
func (r Record) clone() Record {
	out := r
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	if r.Remote != nil {
		rc := *r.Remote
		out.Remote = &rc
	}
	if r.Database != nil {
		d := *r.Database
		out.Database = &d
	}
	if r.Web != nil {
		w := *r.Web
		if r.Web.Application != nil {
			app := *r.Web.Application
			w.Application = &app
		}
		w.RequestHeaders = append([]Header(nil), r.Web.RequestHeaders...)
		w.ResponseHeaders = append([]Header(nil), r.Web.ResponseHeaders...)
		w.Parameters = append([]Header(nil), r.Web.Parameters...)
		out.Web = &w
	}
	if r.Message != nil {
		m := *r.Message
		out.Message = &m
	}
	if r.Attributes != nil {
		out.Attributes = append([]Attribute(nil), r.Attributes...)
	}
	return out
}
