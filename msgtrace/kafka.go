package msgtrace

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/zoobzio/linkz"
)

// KafkaWriter is the producing side of *kafka.Writer.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaReader is the consuming side of *kafka.Reader.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

// KafkaHeaders carries the tag in the headers of a Kafka message.
type KafkaHeaders struct {
	Message *kafka.Message
}

// Tag returns the last tag header. Kafka allows repeated keys.
func (h KafkaHeaders) Tag() linkz.Tag {
	for i := len(h.Message.Headers) - 1; i >= 0; i-- {
		if h.Message.Headers[i].Key == linkz.MessagePropertyName {
			return linkz.ByteTag(h.Message.Headers[i].Value)
		}
	}
	return linkz.Tag{}
}

// SetTag replaces any tag header already on the message.
func (h KafkaHeaders) SetTag(tag []byte) {
	headers := make([]kafka.Header, 0, len(h.Message.Headers)+1)
	for _, hdr := range h.Message.Headers {
		if hdr.Key != linkz.MessagePropertyName {
			headers = append(headers, hdr)
		}
	}
	h.Message.Headers = append(headers, kafka.Header{Key: linkz.MessagePropertyName, Value: tag})
}

// PublishKafka writes msg and traces it as an outgoing message. The message
// key, when present, is recorded as the correlation id.
func PublishKafka(ctx context.Context, sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, w KafkaWriter, msg kafka.Message) error {
	ids := IDs{CorrelationID: string(msg.Key)}
	return Publish(sdk, system, KafkaHeaders{Message: &msg}, ids, func() (string, error) {
		return "", w.WriteMessages(ctx, msg)
	})
}

// ReceiveKafka fetches the next message and traces the wait.
func ReceiveKafka(ctx context.Context, sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, r KafkaReader) (kafka.Message, error) {
	var msg kafka.Message
	err := Receive(sdk, system, func() error {
		var err error
		msg, err = r.FetchMessage(ctx)
		return err
	})
	return msg, err
}

// ProcessKafka traces handling one Kafka message. The vendor message id is
// "topic/partition/offset".
func ProcessKafka(sdk *linkz.SDK, system linkz.MessagingSystemInfoHandle, msg kafka.Message, handle func(kafka.Message) error) error {
	ids := IDs{VendorMessageID: MessageID(msg), CorrelationID: string(msg.Key)}
	return Process(sdk, system, KafkaHeaders{Message: &msg}, ids, func() error {
		return handle(msg)
	})
}

// MessageID identifies a Kafka message by its position.
func MessageID(msg kafka.Message) string {
	return msg.Topic + "/" + strconv.Itoa(msg.Partition) + "/" + strconv.FormatInt(msg.Offset, 10)
}
