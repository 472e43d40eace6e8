// Package msgtrace traces message publishing and processing with linkz.
//
// The outgoing tag travels in the dtdTraceTagInfo message header in its byte
// form. Processing a message continues the publisher's trace from that header.
package msgtrace

import (
	"fmt"

	"github.com/zoobzio/linkz"
)

// Carrier reads and writes the tag header of one message.
type Carrier interface {
	// Tag returns the tag stored in the message, or the empty tag.
	Tag() linkz.Tag
	// SetTag stores a byte tag in the message.
	SetTag(tag []byte)
}

// IDs are the identifiers a messaging system assigns to a message.
type IDs struct {
	VendorMessageID string
	CorrelationID   string
}

// Publish traces send as an outgoing message. The tag is written to carrier
// before send runs. send may return the vendor message id, which is often only
// known once the broker accepted the message.
func Publish(sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, carrier Carrier, ids IDs, send func() (string, error)) error {
	h := sdk.CreateOutgoingMessageTracer(system)
	if h == linkz.TracerHandle(linkz.InvalidHandle) {
		_, err := send()
		return err
	}
	defer sdk.End(h)

	setIDs(sdk, h, ids)
	sdk.Start(h)
	if tag := sdk.OutgoingByteTag(h); tag != nil {
		carrier.SetTag(tag)
	}

	vendorID, err := send()
	if vendorID != "" {
		sdk.SetVendorMessageID(h, vendorID)
	}
	recordError(sdk, h, err)
	return err
}

// Receive traces waiting for messages. Processing each received message is
// traced separately with Process.
func Receive(sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, receive func() error) error {
	h := sdk.CreateIncomingMessageReceiveTracer(system)
	if h == linkz.TracerHandle(linkz.InvalidHandle) {
		return receive()
	}
	defer sdk.End(h)

	sdk.Start(h)
	err := receive()
	recordError(sdk, h, err)
	return err
}

// Process traces handling one received message, continuing the trace found
// in carrier.
func Process(sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, carrier Carrier, ids IDs, handle func() error) error {
	h := sdk.CreateIncomingMessageProcessTracer(system)
	if h == linkz.TracerHandle(linkz.InvalidHandle) {
		return handle()
	}
	defer sdk.End(h)

	if tag := carrier.Tag(); !tag.IsEmpty() {
		sdk.SetIncomingTag(h, tag)
	}
	setIDs(sdk, h, ids)
	sdk.Start(h)

	err := handle()
	recordError(sdk, h, err)
	return err
}

func setIDs(sdk *linkz.SDK, h linkz.TracerHandle, ids IDs) {
	if ids.VendorMessageID != "" {
		sdk.SetVendorMessageID(h, ids.VendorMessageID)
	}
	if ids.CorrelationID != "" {
		sdk.SetCorrelationID(h, ids.CorrelationID)
	}
}

func recordError(sdk *linkz.SDK, h linkz.TracerHandle, err error) {
	if err != nil {
		sdk.Error(h, fmt.Sprintf("%T", err), err.Error())
	}
}
