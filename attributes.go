package linkz

import "fmt"

// AddCustomRequestAttribute attaches a key/value pair to the active tracer of
// the calling goroutine. Values must be integers, floats or strings.
func (s *SDK) AddCustomRequestAttribute(key string, value any) {
	t := s.stacks.top(goroutineID())
	if t == nil {
		s.usageError("custom request attribute: no active tracer")
		return
	}
	if !s.validRequired("custom request attribute", key) {
		return
	}

	var normalized any
	switch v := value.(type) {
	case int:
		normalized = int64(v)
	case int32:
		normalized = int64(v)
	case int64:
		normalized = v
	case float32:
		normalized = float64(v)
	case float64:
		normalized = v
	case string:
		if !s.validOptional("custom request attribute", v) {
			return
		}
		normalized = v
	default:
		s.usageError(fmt.Sprintf("custom request attribute: unsupported value type %T", value))
		return
	}

	t.record.Attributes = append(t.record.Attributes, Attribute{Key: key, Value: normalized})
}
