package msgtrace

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/zoobzio/linkz"
)

// AMQPPublisher is the publishing side of *amqp.Channel.
type AMQPPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPHeaders carries the tag in an AMQP header table.
type AMQPHeaders amqp.Table

// Tag accepts the header as bytes or as a string.
func (h AMQPHeaders) Tag() linkz.Tag {
	switch v := h[linkz.MessagePropertyName].(type) {
	case []byte:
		return linkz.ByteTag(v)
	case string:
		return linkz.StringTag(v)
	default:
		return linkz.Tag{}
	}
}

func (h AMQPHeaders) SetTag(tag []byte) {
	h[linkz.MessagePropertyName] = tag
}

// PublishAMQP publishes msg and traces it as an outgoing message. The
// caller's header table is not modified.
func PublishAMQP(ctx context.Context, sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, pub AMQPPublisher, exchange, key string, msg amqp.Publishing) error {
	headers := make(AMQPHeaders, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	msg.Headers = amqp.Table(headers)

	ids := IDs{VendorMessageID: msg.MessageId, CorrelationID: msg.CorrelationId}
	return Publish(sdk, system, headers, ids, func() (string, error) {
		return "", pub.PublishWithContext(ctx, exchange, key, false, false, msg)
	})
}

// ProcessDelivery traces handling one AMQP delivery.
func ProcessDelivery(sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, d amqp.Delivery, handle func(amqp.Delivery) error) error {
	ids := IDs{VendorMessageID: d.MessageId, CorrelationID: d.CorrelationId}
	return Process(sdk, system, AMQPHeaders(d.Headers), ids, func() error {
		return handle(d)
	})
}
