package otelagent

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/linkz"
)

// Attribute keys used alongside the semantic convention keys.
const (
	KindKey            = attribute.Key("linkz.kind")
	OriginKey          = attribute.Key("linkz.origin")
	ErrorClassKey      = attribute.Key("linkz.error.class")
	ChannelTypeKey     = attribute.Key("linkz.channel.type")
	ChannelEndpointKey = attribute.Key("linkz.channel.endpoint")
	ProtocolKey        = attribute.Key("linkz.protocol")
	RowCountKey        = attribute.Key("linkz.db.returned_rows")
	RoundTripCountKey  = attribute.Key("linkz.db.round_trips")
	DBNameKey          = attribute.Key("db.namespace")
	DBStatementKey     = attribute.Key("db.query.text")
	WebServerKey       = attribute.Key("linkz.web.server")
	ApplicationIDKey   = attribute.Key("linkz.web.application")
	ContextRootKey     = attribute.Key("linkz.web.context_root")
	CorrelationIDKey   = attribute.Key("messaging.message.conversation_id")
)

func spanName(r linkz.Record) string {
	switch {
	case r.Remote != nil:
		return r.Remote.Method
	case r.Database != nil:
		return r.Database.Info.Vendor + " " + r.Database.Info.Name
	case r.Web != nil:
		return r.Web.Method
	case r.Message != nil:
		return messageOperation(r.Kind) + " " + r.Message.System.Destination
	default:
		return r.Kind.String()
	}
}

func messageOperation(k linkz.Kind) string {
	switch k {
	case linkz.KindOutgoingMessage:
		return "publish"
	case linkz.KindIncomingMessageReceive:
		return "receive"
	default:
		return "process"
	}
}

func spanKind(k linkz.Kind) trace.SpanKind {
	switch k {
	case linkz.KindOutgoingRemoteCall, linkz.KindDatabaseRequest, linkz.KindOutgoingWebRequest:
		return trace.SpanKindClient
	case linkz.KindIncomingRemoteCall, linkz.KindIncomingWebRequest, linkz.KindCustomService:
		return trace.SpanKindServer
	case linkz.KindOutgoingMessage:
		return trace.SpanKindProducer
	case linkz.KindIncomingMessageReceive, linkz.KindIncomingMessageProcess:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}

func attributes(r linkz.Record) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		KindKey.String(r.Kind.String()),
		OriginKey.String(r.Origin.String()),
	}
	if r.Error != nil && r.Error.Class != "" {
		attrs = append(attrs, ErrorClassKey.String(r.Error.Class))
	}

	if rc := r.Remote; rc != nil {
		attrs = append(attrs,
			semconv.RPCMethodKey.String(rc.Method),
			semconv.RPCServiceKey.String(rc.Service),
		)
		if rc.Endpoint != "" {
			attrs = append(attrs, semconv.ServerAddressKey.String(rc.Endpoint))
		}
		if rc.Protocol != "" {
			attrs = append(attrs, ProtocolKey.String(rc.Protocol))
		}
		attrs = appendChannel(attrs, rc.Channel)
	}

	if db := r.Database; db != nil {
		attrs = append(attrs,
			semconv.DBSystemKey.String(db.Info.Vendor),
			DBNameKey.String(db.Info.Name),
			DBStatementKey.String(db.Statement),
		)
		if db.ReturnedRowCount != linkz.Unset {
			attrs = append(attrs, RowCountKey.Int64(int64(db.ReturnedRowCount)))
		}
		if db.RoundTripCount != linkz.Unset {
			attrs = append(attrs, RoundTripCountKey.Int64(int64(db.RoundTripCount)))
		}
		attrs = appendChannel(attrs, db.Info.Channel)
	}

	if w := r.Web; w != nil {
		attrs = append(attrs,
			semconv.HTTPRequestMethodKey.String(w.Method),
			semconv.URLFullKey.String(w.URL),
		)
		if w.StatusCode != linkz.Unset {
			attrs = append(attrs, semconv.HTTPResponseStatusCodeKey.Int(int(w.StatusCode)))
		}
		if w.RemoteAddress != "" {
			attrs = append(attrs, semconv.ClientAddressKey.String(w.RemoteAddress))
		}
		if app := w.Application; app != nil {
			attrs = append(attrs,
				WebServerKey.String(app.WebServerName),
				ApplicationIDKey.String(app.ApplicationID),
				ContextRootKey.String(app.ContextRoot),
			)
		}
		attrs = appendHeaders(attrs, "http.request.header.", w.RequestHeaders)
		attrs = appendHeaders(attrs, "http.response.header.", w.ResponseHeaders)
		attrs = appendHeaders(attrs, "linkz.web.parameter.", w.Parameters)
	}

	if m := r.Message; m != nil {
		attrs = append(attrs,
			semconv.MessagingSystemKey.String(m.System.Vendor),
			semconv.MessagingDestinationNameKey.String(m.System.Destination),
		)
		if m.VendorMessageID != "" {
			attrs = append(attrs, semconv.MessagingMessageIDKey.String(m.VendorMessageID))
		}
		if m.CorrelationID != "" {
			attrs = append(attrs, CorrelationIDKey.String(m.CorrelationID))
		}
		attrs = appendChannel(attrs, m.System.Channel)
	}

	for _, a := range r.Attributes {
		key := attribute.Key(a.Key)
		switch v := a.Value.(type) {
		case int64:
			attrs = append(attrs, key.Int64(v))
		case float64:
			attrs = append(attrs, key.Float64(v))
		case string:
			attrs = append(attrs, key.String(v))
		default:
			attrs = append(attrs, key.String(fmt.Sprint(v)))
		}
	}
	return attrs
}

func appendChannel(attrs []attribute.KeyValue, c linkz.Channel) []attribute.KeyValue {
	attrs = append(attrs, ChannelTypeKey.String(c.Type.String()))
	if c.Endpoint != "" {
		attrs = append(attrs, ChannelEndpointKey.String(c.Endpoint))
	}
	return attrs
}

// appendHeaders groups repeated names into one string slice attribute.
func appendHeaders(attrs []attribute.KeyValue, prefix string, headers []linkz.Header) []attribute.KeyValue {
	if len(headers) == 0 {
		return attrs
	}
	var order []string
	values := make(map[string][]string)
	for _, h := range headers {
		if _, ok := values[h.Name]; !ok {
			order = append(order, h.Name)
		}
		values[h.Name] = append(values[h.Name], h.Value)
	}
	for _, name := range order {
		attrs = append(attrs, attribute.StringSlice(prefix+name, values[name]))
	}
	return attrs
}

func randomIDs() (trace.TraceID, trace.SpanID) {
	var traceID trace.TraceID
	if u, err := uuid.NewRandom(); err == nil {
		traceID = trace.TraceID(u)
	}
	var spanID trace.SpanID
	_, _ = rand.Read(spanID[:])
	return traceID, spanID
}
