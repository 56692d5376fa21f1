package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder.
// All methods are empty, providing zero overhead when metrics are disabled.
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthorizationRequest(responseType, result string)           {}
func (n *NoopMetrics) RecordAuthorizationDecision(decision string)                      {}
func (n *NoopMetrics) RecordGrantIssued(success bool)                                   {}
func (n *NoopMetrics) RecordGrantRedemption(result string)                              {}
func (n *NoopMetrics) RecordTokenIssued(grantType string, duration time.Duration)       {}
func (n *NoopMetrics) RecordTokenRevoked(reason string)                                 {}
func (n *NoopMetrics) RecordTokenValidation(result string)                              {}
func (n *NoopMetrics) RecordClientRevoked(tokensRevoked int64)                          {}
func (n *NoopMetrics) RecordHTTPRequest(method, path, status string, d time.Duration)   {}
func (n *NoopMetrics) IncHTTPInFlight()                                                 {}
func (n *NoopMetrics) DecHTTPInFlight()                                                 {}
