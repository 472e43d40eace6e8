// Package linkz provides handle-based tracers for client-side distributed tracing.
//
// linkz captures timing, metadata and causal linkage for units of work such as
// remote calls, database requests, web requests and messages, and propagates
// trace context across goroutine, process and queue boundaries. Captured data
// is handed to an Agent, which owns reporting.
//
// Core Components:.
//   - SDK: Owns the handle registry, goroutine context stacks and the agent.
//   - Tracer handles: One measured unit of work, driven create -> start -> end.
//   - Info objects: Immutable database, web application and messaging descriptors.
//   - Tags: Opaque string or byte tokens for cross-process propagation.
//   - In-process links: Cheap same-process tokens for cross-goroutine linkage.
//   - Collector: In-memory Agent that buffers captured records.
//
// Basic Usage:.
//
//	sdk := linkz.New(agent)
//
//	db := sdk.CreateDatabaseInfo("orders", linkz.VendorPostgreSQL, linkz.Channel{Type: linkz.ChannelTCPIP, Endpoint: "db:5432"})
//	defer sdk.DeleteDatabaseInfo(db)
//
//	h := sdk.CreateSQLDatabaseRequestTracer(db, "SELECT * FROM orders")
//	sdk.Start(h)
//	defer sdk.End(h)
//	sdk.SetReturnedRowCount(h, 42)
//
// Goroutine Affinity:.
//
// A tracer belongs to the goroutine that created it. Every operation on it,
// including End, must happen on that goroutine. Calls from other goroutines
// are dropped and leak the tracer.
//
// Automatic Linking:.
//
// Started tracers are pushed onto the creating goroutine's context stack. A
// new tracer becomes the child of whatever tracer is on top of that stack.
// Crossing goroutines or processes requires tags or in-process links.
//
// Failure Behavior:.
//
// Tracing operations never panic and never return errors. Misuse such as an
// invalid handle, a wrong goroutine or a wrong lifecycle state is a silent
// no-op, optionally reported through the diagnostics callback.
package linkz

// Kind identifies the type of a tracer.
type Kind int

const (
	KindOutgoingRemoteCall Kind = iota + 1
	KindIncomingRemoteCall
	KindDatabaseRequest
	KindIncomingWebRequest
	KindOutgoingWebRequest
	KindCustomService
	KindOutgoingMessage
	KindIncomingMessageReceive
	KindIncomingMessageProcess
	KindInProcessLink
)

var kindNames = map[Kind]string{
	KindOutgoingRemoteCall:     "outgoing_remote_call",
	KindIncomingRemoteCall:     "incoming_remote_call",
	KindDatabaseRequest:        "database_request",
	KindIncomingWebRequest:     "incoming_web_request",
	KindOutgoingWebRequest:     "outgoing_web_request",
	KindCustomService:          "custom_service",
	KindOutgoingMessage:        "outgoing_message",
	KindIncomingMessageReceive: "incoming_message_receive",
	KindIncomingMessageProcess: "incoming_message_process",
	KindInProcessLink:          "in_process_link",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// OutgoingTaggable reports whether tracers of this kind produce outgoing tags.
func (k Kind) OutgoingTaggable() bool {
	switch k {
	case KindOutgoingRemoteCall, KindOutgoingWebRequest, KindOutgoingMessage:
		return true
	default:
		return false
	}
}

// IncomingTaggable reports whether tracers of this kind accept an incoming tag.
func (k Kind) IncomingTaggable() bool {
	switch k {
	case KindIncomingRemoteCall, KindIncomingWebRequest, KindIncomingMessageProcess:
		return true
	default:
		return false
	}
}

// ChannelType describes the transport used to reach a service or resource.
type ChannelType int

const (
	ChannelOther ChannelType = iota
	ChannelTCPIP
	ChannelUnixDomainSocket
	ChannelNamedPipe
	ChannelInProcess
)

func (c ChannelType) String() string {
	switch c {
	case ChannelTCPIP:
		return "tcp_ip"
	case ChannelUnixDomainSocket:
		return "unix_domain_socket"
	case ChannelNamedPipe:
		return "named_pipe"
	case ChannelInProcess:
		return "in_process"
	default:
		return "other"
	}
}

// Channel is a communication channel and its optional endpoint,
// e.g. {ChannelTCPIP, "db.example.com:5432"}.
type Channel struct {
	Endpoint string      `json:"endpoint,omitempty"`
	Type     ChannelType `json:"type"`
}

// DestinationType is the kind of messaging destination.
type DestinationType int

const (
	DestinationQueue DestinationType = iota + 1
	DestinationTopic
)

// AgentState is the state reported by the agent.
type AgentState int

const (
	AgentStateError AgentState = iota - 1
	AgentStateActive
	AgentStateTemporarilyInactive
	AgentStatePermanentlyInactive
	AgentStateNotInitialized
)

// Propagation carrier names.
const (
	HTTPHeaderName          = "X-dynaTrace"
	MessagePropertyName     = "dtdTraceTagInfo"
	DefaultMaxStringLength  = 4096
	defaultIDPoolMultiplier = 100
)

// Well known database vendor names.
const (
	VendorMySQL      = "MySQL"
	VendorMariaDB    = "MariaDB"
	VendorOracle     = "Oracle"
	VendorPostgreSQL = "PostgreSQL"
	VendorSQLServer  = "SQL Server"
	VendorSQLite     = "sqlite"
	VendorCassandra  = "Cassandra"
	VendorRedshift   = "Amazon Redshift"
)

// Well known messaging vendor names.
const (
	MessagingVendorActiveMQ = "ActiveMQ"
	MessagingVendorRabbitMQ = "RabbitMQ"
	MessagingVendorArtemis  = "Artemis"
	MessagingVendorKafka    = "Kafka"
	MessagingVendorTibco    = "Tibco"
)
