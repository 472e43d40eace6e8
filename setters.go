package linkz

// window is the part of the lifecycle in which a field may be set.
type window uint8

const (
	beforeStart window = iota
	afterStart
	beforeEnd
)

// fieldTracer resolves h for a setter restricted to kinds and w.
func (s *SDK) fieldTracer(h TracerHandle, op string, w window, kinds ...Kind) (*tracer, bool) {
	t, ok := s.ownedTracer(h, op)
	if !ok {
		return nil, false
	}

	allowed := false
	for _, k := range kinds {
		if t.record.Kind == k {
			allowed = true
			break
		}
	}
	if !allowed {
		s.usageError(op + ": not supported by tracer kind " + t.record.Kind.String())
		return nil, false
	}

	switch w {
	case beforeStart:
		if t.state != stateCreated {
			s.usageError(op + ": can not be used after the tracer was started")
			return nil, false
		}
	case afterStart:
		if t.state != stateStarted {
			s.usageError(op + ": can only be used on a started tracer")
			return nil, false
		}
	}
	return t, true
}

// SetProtocolName sets the wire protocol of a remote call before it starts.
func (s *SDK) SetProtocolName(h TracerHandle, protocol string) {
	t, ok := s.fieldTracer(h, "set protocol name", beforeStart, KindOutgoingRemoteCall, KindIncomingRemoteCall)
	if !ok || !s.validOptional("set protocol name", protocol) {
		return
	}
	t.record.Remote.Protocol = protocol
}

// SetRemoteAddress sets the client address of an incoming web request before it starts.
func (s *SDK) SetRemoteAddress(h TracerHandle, address string) {
	t, ok := s.fieldTracer(h, "set remote address", beforeStart, KindIncomingWebRequest)
	if !ok || !s.validOptional("set remote address", address) {
		return
	}
	t.record.Web.RemoteAddress = address
}

// AddRequestHeader adds one request header to a web request tracer before it starts.
func (s *SDK) AddRequestHeader(h TracerHandle, name, value string) {
	s.AddRequestHeaders(h, Header{Name: name, Value: value})
}

// AddRequestHeaders adds request headers to a web request tracer before it starts.
func (s *SDK) AddRequestHeaders(h TracerHandle, headers ...Header) {
	t, ok := s.fieldTracer(h, "add request headers", beforeStart, KindIncomingWebRequest, KindOutgoingWebRequest)
	if !ok || !s.validHeaders("add request headers", headers) {
		return
	}
	t.record.Web.RequestHeaders = append(t.record.Web.RequestHeaders, headers...)
}

// AddParameter adds one form parameter to an incoming web request before it starts.
func (s *SDK) AddParameter(h TracerHandle, name, value string) {
	s.AddParameters(h, Header{Name: name, Value: value})
}

// AddParameters adds form parameters to an incoming web request before it starts.
func (s *SDK) AddParameters(h TracerHandle, params ...Header) {
	t, ok := s.fieldTracer(h, "add parameters", beforeStart, KindIncomingWebRequest)
	if !ok || !s.validHeaders("add parameters", params) {
		return
	}
	t.record.Web.Parameters = append(t.record.Web.Parameters, params...)
}

// AddResponseHeader adds one response header to a started web request tracer.
func (s *SDK) AddResponseHeader(h TracerHandle, name, value string) {
	s.AddResponseHeaders(h, Header{Name: name, Value: value})
}

// AddResponseHeaders adds response headers to a started web request tracer.
func (s *SDK) AddResponseHeaders(h TracerHandle, headers ...Header) {
	t, ok := s.fieldTracer(h, "add response headers", afterStart, KindIncomingWebRequest, KindOutgoingWebRequest)
	if !ok || !s.validHeaders("add response headers", headers) {
		return
	}
	t.record.Web.ResponseHeaders = append(t.record.Web.ResponseHeaders, headers...)
}

// SetStatusCode sets the HTTP status of a started web request tracer.
func (s *SDK) SetStatusCode(h TracerHandle, code int32) {
	t, ok := s.fieldTracer(h, "set status code", afterStart, KindIncomingWebRequest, KindOutgoingWebRequest)
	if !ok {
		return
	}
	t.record.Web.StatusCode = code
}

// SetReturnedRowCount sets the number of rows a started database request returned.
func (s *SDK) SetReturnedRowCount(h TracerHandle, rows int32) {
	t, ok := s.fieldTracer(h, "set returned row count", afterStart, KindDatabaseRequest)
	if !ok {
		return
	}
	if rows < 0 {
		s.usageError("set returned row count: negative value")
		return
	}
	t.record.Database.ReturnedRowCount = rows
}

// SetRoundTripCount sets the number of round trips of a started database request.
func (s *SDK) SetRoundTripCount(h TracerHandle, roundTrips int32) {
	t, ok := s.fieldTracer(h, "set round trip count", afterStart, KindDatabaseRequest)
	if !ok {
		return
	}
	if roundTrips < 0 {
		s.usageError("set round trip count: negative value")
		return
	}
	t.record.Database.RoundTripCount = roundTrips
}

// SetVendorMessageID sets the messaging system's id for the message. It is
// often only known after sending, so it may be set before or after Start.
func (s *SDK) SetVendorMessageID(h TracerHandle, id string) {
	t, ok := s.fieldTracer(h, "set vendor message id", beforeEnd, KindOutgoingMessage, KindIncomingMessageProcess)
	if !ok || !s.validOptional("set vendor message id", id) {
		return
	}
	t.record.Message.VendorMessageID = id
}

// SetCorrelationID sets the application correlation id of the message. It
// may be set before or after Start.
func (s *SDK) SetCorrelationID(h TracerHandle, id string) {
	t, ok := s.fieldTracer(h, "set correlation id", beforeEnd, KindOutgoingMessage, KindIncomingMessageProcess)
	if !ok || !s.validOptional("set correlation id", id) {
		return
	}
	t.record.Message.CorrelationID = id
}

func (s *SDK) validHeaders(op string, headers []Header) bool {
	for _, hd := range headers {
		if !s.validRequired(op, hd.Name) || !s.validOptional(op, hd.Value) {
			return false
		}
	}
	return true
}
