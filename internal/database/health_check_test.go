package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestHealthChecker_Basic(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	checker := NewHealthChecker(db, newTestLogger())
	assert.False(t, checker.IsHealthy())

	err = checker.Check(context.Background())
	assert.NoError(t, err)
	assert.True(t, checker.IsHealthy())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_FailureAndRecovery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	checker := NewHealthChecker(db, newTestLogger())
	ctx := context.Background()

	// 先失败
	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)
	assert.Error(t, checker.Check(ctx))
	assert.False(t, checker.IsHealthy())
	assert.NotEmpty(t, checker.GetHealthResult().LastError)

	// 再恢复
	mock.ExpectPing()
	assert.NoError(t, checker.Check(ctx))
	assert.True(t, checker.IsHealthy())
	assert.Empty(t, checker.GetHealthResult().LastError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_BackgroundMonitoring(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	checker := NewHealthChecker(db, newTestLogger())
	checker.SetCheckInterval(time.Hour)

	checker.Start(context.Background())
	checker.Start(context.Background())

	require.Eventually(t, checker.IsHealthy, time.Second, 10*time.Millisecond)

	checker.Stop()
	checker.Stop()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_Result(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	checker := NewHealthChecker(db, newTestLogger())

	result := checker.GetHealthResult()
	assert.False(t, result.Healthy)
	assert.True(t, result.LastCheck.IsZero())

	mock.ExpectPing()
	require.NoError(t, checker.Check(context.Background()))

	result = checker.GetHealthResult()
	assert.True(t, result.Healthy)
	assert.False(t, result.LastCheck.IsZero())
	assert.NotEmpty(t, result.ResponseTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}
