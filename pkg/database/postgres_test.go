package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "edu", SSLMode: "require"})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=edu sslmode=require timezone=UTC", dsn)
}

func TestPing(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer raw.Close()

	mock.ExpectPing()
	assert.NoError(t, Ping(context.Background(), sqlx.NewDb(raw, "postgres")))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, Ping(context.Background(), nil))
}
