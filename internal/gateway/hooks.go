package gateway

import "time"

// Metrics receives gateway activity counts. Implementations must be safe
// for concurrent use.
type Metrics interface {
	PublishCycle(d time.Duration, entities int)
	PublishFailed()
	CommandHandled(kind Kind)
	LockTimeout()
}

type nopMetrics struct{}

func (nopMetrics) PublishCycle(time.Duration, int) {}
func (nopMetrics) PublishFailed()                  {}
func (nopMetrics) CommandHandled(Kind)             {}
func (nopMetrics) LockTimeout()                    {}

// Logger is the structured logger used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
