package logger

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql, op, table string
	}{
		{`SELECT * FROM "garansis" WHERE id = $1`, "SELECT", "garansis"},
		{`INSERT INTO "audit_logs" ("id") VALUES ($1)`, "INSERT", "audit_logs"},
		{`UPDATE "orders" SET "status_pengajuan"=$1`, "UPDATE", "orders"},
		{`DELETE FROM sessions WHERE id = 1`, "DELETE", "sessions"},
		{`WITH x AS (SELECT 1) SELECT * FROM x`, "SELECT", "x"},
		{"", "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		assert.Equal(t, tc.op, op, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormConfigFor(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormConfigFor("debug").Level)
	assert.Equal(t, gormlogger.Warn, GormConfigFor("info").Level)
	assert.Equal(t, gormlogger.Error, GormConfigFor("ERROR").Level)
	assert.True(t, GormConfigFor("info").IgnoreRecordNotFound)
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/api/garansi", http.StatusInternalServerError, ""))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", http.StatusOK, ""))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/api/garansi/customers", http.StatusUnprocessableEntity, "validation_error"))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/api/reference/regions", http.StatusUnprocessableEntity, "validation_error"))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/garansi", http.StatusUnprocessableEntity, "validation_error"))
}

func TestRecordEntity(t *testing.T) {
	assert.Equal(t, "garansi", recordEntity("/api/garansi/:id/pdf"))
	assert.Equal(t, "order", recordEntity("/api/orders/export"))
	assert.Empty(t, recordEntity("/api/dashboard/overview"))
}
