package linkz

import "go.uber.org/zap"

// Severity classifies a diagnostic message.
type Severity int

const (
	SeverityVerbose Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "verbose"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// DiagnosticFunc receives usage errors and unexpected internal failures.
// It must not call back into the SDK.
type DiagnosticFunc func(severity Severity, message string)

// ZapDiagnostics routes diagnostics to a zap logger.
func ZapDiagnostics(logger *zap.Logger) DiagnosticFunc {
	if logger == nil {
		return nil
	}
	logger = logger.WithOptions(zap.AddCallerSkip(2))
	return func(severity Severity, message string) {
		switch severity {
		case SeverityVerbose:
			logger.Debug(message)
		case SeverityWarning:
			logger.Warn(message)
		default:
			logger.Error(message)
		}
	}
}

// diagnose reports a message, recovering from a panicking callback.
func (s *SDK) diagnose(severity Severity, message string) {
	if s.diagnostics == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.diagnostics(severity, message)
}

// usageError counts and reports a misuse.
func (s *SDK) usageError(message string) {
	s.stats.usageErrors.Add(1)
	s.diagnose(SeverityWarning, message)
}
