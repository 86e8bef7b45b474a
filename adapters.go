package rediscache

// serverLogger adapts our Logger interface to server.Logger
type serverLogger struct {
	logger Logger
}

func (sl *serverLogger) Debug(msg string, fields ...interface{}) {
	sl.logger.Debug(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Info(msg string, fields ...interface{}) {
	sl.logger.Info(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Error(msg string, fields ...interface{}) {
	sl.logger.Error(msg, convertFields(fields...)...)
}

func convertFields(fields ...interface{}) []Field {
	result := make([]Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: fields[i+1],
			})
		}
	}
	return result
}

// metricsObserver feeds storage events to a MetricsCollector
type metricsObserver struct {
	metrics MetricsCollector
}

func (mo *metricsObserver) OnKeySet(ns, key string) {
	mo.metrics.RecordKeySet(ns)
}

func (mo *metricsObserver) OnKeyDeleted(ns, key string) {
	mo.metrics.RecordKeyDeleted(ns)
}

func (mo *metricsObserver) OnKeyExpired(ns, key string) {
	mo.metrics.RecordKeyExpired(ns)
}
