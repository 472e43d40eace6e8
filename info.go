package linkz

import "sync/atomic"

// DatabaseInfo describes a database that SQL tracers run against.
type DatabaseInfo struct {
	Name    string  `json:"name"`
	Vendor  string  `json:"vendor"`
	Channel Channel `json:"channel"`
}

// WebApplicationInfo describes the web application serving incoming web requests.
type WebApplicationInfo struct {
	WebServerName string `json:"web_server_name"`
	ApplicationID string `json:"application_id"`
	ContextRoot   string `json:"context_root"`
}

// MessagingSystemInfo describes a messaging destination.
type MessagingSystemInfo struct {
	Vendor          string          `json:"vendor"`
	Destination     string          `json:"destination"`
	Channel         Channel         `json:"channel"`
	DestinationType DestinationType `json:"destination_type"`
}

// infoObject is the shared, immutable storage behind an info handle. The
// handle holds one reference and every tracer created against it holds
// another; storage is released when the last one goes away.
type infoObject[T any] struct {
	onFree func()
	value  T
	refs   atomic.Int32
}

func newInfoObject[T any](value T, onFree func()) *infoObject[T] {
	o := &infoObject[T]{value: value, onFree: onFree}
	o.refs.Store(1)
	return o
}

// acquire adds a reference. It fails if storage has already been released.
func (o *infoObject[T]) acquire() bool {
	for {
		n := o.refs.Load()
		if n <= 0 {
			return false
		}
		if o.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference and frees storage on the last one.
func (o *infoObject[T]) release() {
	if o.refs.Add(-1) == 0 && o.onFree != nil {
		o.onFree()
	}
}

// alive reports whether storage is still held.
func (o *infoObject[T]) alive() bool {
	return o.refs.Load() > 0
}

// CreateDatabaseInfo registers a database descriptor. Name and vendor are required.
func (s *SDK) CreateDatabaseInfo(name, vendor string, channel Channel) DatabaseInfoHandle {
	if !s.passiveCreationAllowed() {
		return DatabaseInfoHandle(InvalidHandle)
	}
	if !s.validRequired("database info", name, vendor) || !s.validOptional("database info", channel.Endpoint) {
		return DatabaseInfoHandle(InvalidHandle)
	}
	obj := newInfoObject(DatabaseInfo{Name: name, Vendor: vendor, Channel: channel}, s.infoFreed)
	return DatabaseInfoHandle(s.registerInfo(objectDatabaseInfo, obj))
}

// DeleteDatabaseInfo invalidates h. Tracers already created against it keep
// the descriptor alive until they end.
func (s *SDK) DeleteDatabaseInfo(h DatabaseInfoHandle) {
	deleteInfo[DatabaseInfo](s, Handle(h), objectDatabaseInfo)
}

// CreateWebApplicationInfo registers a web application descriptor. All fields are required.
func (s *SDK) CreateWebApplicationInfo(webServerName, applicationID, contextRoot string) WebApplicationInfoHandle {
	if !s.passiveCreationAllowed() {
		return WebApplicationInfoHandle(InvalidHandle)
	}
	if !s.validRequired("web application info", webServerName, applicationID, contextRoot) {
		return WebApplicationInfoHandle(InvalidHandle)
	}
	obj := newInfoObject(WebApplicationInfo{
		WebServerName: webServerName,
		ApplicationID: applicationID,
		ContextRoot:   contextRoot,
	}, s.infoFreed)
	return WebApplicationInfoHandle(s.registerInfo(objectWebApplicationInfo, obj))
}

// DeleteWebApplicationInfo invalidates h. Tracers already created against it
// keep the descriptor alive until they end.
func (s *SDK) DeleteWebApplicationInfo(h WebApplicationInfoHandle) {
	deleteInfo[WebApplicationInfo](s, Handle(h), objectWebApplicationInfo)
}

// CreateMessagingSystemInfo registers a messaging destination. Vendor and
// destination are required.
func (s *SDK) CreateMessagingSystemInfo(vendor, destination string, destinationType DestinationType, channel Channel) MessagingSystemInfoHandle {
	if !s.passiveCreationAllowed() {
		return MessagingSystemInfoHandle(InvalidHandle)
	}
	if !s.validRequired("messaging system info", vendor, destination) || !s.validOptional("messaging system info", channel.Endpoint) {
		return MessagingSystemInfoHandle(InvalidHandle)
	}
	obj := newInfoObject(MessagingSystemInfo{
		Vendor:          vendor,
		Destination:     destination,
		DestinationType: destinationType,
		Channel:         channel,
	}, s.infoFreed)
	return MessagingSystemInfoHandle(s.registerInfo(objectMessagingSystemInfo, obj))
}

// DeleteMessagingSystemInfo invalidates h. Tracers already created against it
// keep the descriptor alive until they end.
func (s *SDK) DeleteMessagingSystemInfo(h MessagingSystemInfoHandle) {
	deleteInfo[MessagingSystemInfo](s, Handle(h), objectMessagingSystemInfo)
}

func (s *SDK) registerInfo(kind objectKind, obj any) Handle {
	h := s.registry.create(kind, obj)
	if h == InvalidHandle {
		s.diagnose(SeverityError, "info object could not be registered")
		return InvalidHandle
	}
	s.stats.liveInfos.Add(1)
	return h
}

func (s *SDK) infoFreed() {
	s.stats.liveInfos.Add(-1)
}

func deleteInfo[T any](s *SDK, h Handle, kind objectKind) {
	v, ok := s.registry.release(h, kind)
	if !ok {
		return
	}
	if obj, ok := v.(*infoObject[T]); ok {
		obj.release()
	}
}

// acquireInfo resolves h and takes a reference for a new tracer.
func acquireInfo[T any](s *SDK, h Handle, kind objectKind) (*infoObject[T], bool) {
	v, ok := s.registry.resolve(h, kind)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*infoObject[T])
	if !ok || !obj.acquire() {
		return nil, false
	}
	return obj, true
}
