package logger

// MultiLogger forwards every call to each wrapped logger.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger wraps loggers, skipping nil entries.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogTrace(message string) {
	for _, l := range m.loggers {
		l.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogSummary(summary RunSummary) {
	for _, l := range m.loggers {
		l.LogSummary(summary)
	}
}
