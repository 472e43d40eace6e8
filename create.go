package linkz

// CreateOutgoingRemoteCallTracer traces a call to a remote service. Method,
// service and endpoint are required; the channel endpoint is optional.
func (s *SDK) CreateOutgoingRemoteCallTracer(method, service, endpoint string, channel Channel) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	if !s.validRequired("outgoing remote call", method, service, endpoint) || !s.validOptional("outgoing remote call", channel.Endpoint) {
		return TracerHandle(InvalidHandle)
	}
	return s.newTracer(KindOutgoingRemoteCall, Record{
		Remote: &RemoteCall{Method: method, Service: service, Endpoint: endpoint, Channel: channel},
	}, nil, nil)
}

// CreateIncomingRemoteCallTracer traces the serving side of a remote call.
func (s *SDK) CreateIncomingRemoteCallTracer(method, service, endpoint string) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	if !s.validRequired("incoming remote call", method, service, endpoint) {
		return TracerHandle(InvalidHandle)
	}
	return s.newTracer(KindIncomingRemoteCall, Record{
		Remote: &RemoteCall{Method: method, Service: service, Endpoint: endpoint},
	}, nil, nil)
}

// CreateSQLDatabaseRequestTracer traces one SQL statement against a database.
func (s *SDK) CreateSQLDatabaseRequestTracer(db DatabaseInfoHandle, statement string) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	if !s.validRequired("database request", statement) {
		return TracerHandle(InvalidHandle)
	}
	info, ok := acquireInfo[DatabaseInfo](s, Handle(db), objectDatabaseInfo)
	if !ok {
		return TracerHandle(InvalidHandle)
	}
	return s.newTracer(KindDatabaseRequest, Record{
		Database: &DatabaseCall{
			Info:             info.value,
			Statement:        statement,
			ReturnedRowCount: Unset,
			RoundTripCount:   Unset,
		},
	}, info.release, nil)
}

// CreateIncomingWebRequestTracer traces a request served by app. URL and method are required.
func (s *SDK) CreateIncomingWebRequestTracer(app WebApplicationInfoHandle, url, method string) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	if !s.validRequired("incoming web request", url, method) {
		return TracerHandle(InvalidHandle)
	}
	info, ok := acquireInfo[WebApplicationInfo](s, Handle(app), objectWebApplicationInfo)
	if !ok {
		return TracerHandle(InvalidHandle)
	}
	application := info.value
	return s.newTracer(KindIncomingWebRequest, Record{
		Web: &WebRequest{Application: &application, URL: url, Method: method, StatusCode: Unset},
	}, info.release, nil)
}

// CreateOutgoingWebRequestTracer traces an HTTP request sent by the application.
func (s *SDK) CreateOutgoingWebRequestTracer(url, method string) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	if !s.validRequired("outgoing web request", url, method) {
		return TracerHandle(InvalidHandle)
	}
	return s.newTracer(KindOutgoingWebRequest, Record{
		Web: &WebRequest{URL: url, Method: method, StatusCode: Unset},
	}, nil, nil)
}

// CreateCustomServiceTracer traces a service entry point that fits no other kind.
func (s *SDK) CreateCustomServiceTracer(method, service string) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	if !s.validRequired("custom service", method, service) {
		return TracerHandle(InvalidHandle)
	}
	return s.newTracer(KindCustomService, Record{
		Remote: &RemoteCall{Method: method, Service: service},
	}, nil, nil)
}

// CreateOutgoingMessageTracer traces sending a message.
func (s *SDK) CreateOutgoingMessageTracer(system MessagingSystemInfoHandle) TracerHandle {
	return s.createMessageTracer(KindOutgoingMessage, system)
}

// CreateIncomingMessageReceiveTracer traces receiving (polling for) messages.
func (s *SDK) CreateIncomingMessageReceiveTracer(system MessagingSystemInfoHandle) TracerHandle {
	return s.createMessageTracer(KindIncomingMessageReceive, system)
}

// CreateIncomingMessageProcessTracer traces processing one received message.
func (s *SDK) CreateIncomingMessageProcessTracer(system MessagingSystemInfoHandle) TracerHandle {
	return s.createMessageTracer(KindIncomingMessageProcess, system)
}

func (s *SDK) createMessageTracer(kind Kind, system MessagingSystemInfoHandle) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	info, ok := acquireInfo[MessagingSystemInfo](s, Handle(system), objectMessagingSystemInfo)
	if !ok {
		return TracerHandle(InvalidHandle)
	}
	return s.newTracer(kind, Record{
		Message: &Message{System: info.value},
	}, info.release, nil)
}
