package metrics

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// UpdateDBStats updates database connection pool metrics
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.safeExecute("UpdateDBStats", func() {
		m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		m.DBConnectionsInUse.Set(float64(stats.InUse))
		m.DBConnectionsIdle.Set(float64(stats.Idle))
	})
}

// RecordDBQuery records database query metrics
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.safeExecute("RecordDBQuery", func() {
		operation = strings.ToLower(operation)
		m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())

		if err != nil {
			m.DBQueryErrors.WithLabelValues(operation, table).Inc()
		}
	})
}

// RecordTransactionRetry counts a retried transaction. attempt is the number
// of the attempt that failed.
func (m *Metrics) RecordTransactionRetry(attempt int, _ error) {
	m.safeExecute("RecordTransactionRetry", func() {
		m.TransactionRetries.WithLabelValues(strconv.Itoa(attempt)).Inc()
	})
}

// IncrementTransientFailure counts a transaction given up after its last attempt.
func (m *Metrics) IncrementTransientFailure() {
	m.safeExecute("IncrementTransientFailure", func() {
		m.TransientFailures.Inc()
	})
}
