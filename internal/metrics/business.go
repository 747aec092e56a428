package metrics

// IncrementLocalIDAllocated counts a local id handed out for a row of table.
func (m *Metrics) IncrementLocalIDAllocated(table string) {
	m.safeExecute("IncrementLocalIDAllocated", func() {
		m.LocalIDsAllocated.WithLabelValues(table).Inc()
	})
}

// RecordPropertyChange counts an upsert or remove of a property definition.
func (m *Metrics) RecordPropertyChange(operation string, err error) {
	m.safeExecute("RecordPropertyChange", func() {
		result := "ok"
		if err != nil {
			result = "rejected"
		}
		m.PropertyChanges.WithLabelValues(operation, result).Inc()
	})
}

// IncrementPinRejected counts a pin refused by the per-user limit.
func (m *Metrics) IncrementPinRejected() {
	m.safeExecute("IncrementPinRejected", func() {
		m.PinRejections.Inc()
	})
}
