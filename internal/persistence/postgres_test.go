package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/enrollment-service/internal/config"
)

func TestNewPostgresRequiresDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingDSN)
}

func TestApplyPoolLimits(t *testing.T) {
	poolCfg, err := pgxpool.ParseConfig("postgres://app@localhost:5432/enrollment")
	require.NoError(t, err)

	applyPoolLimits(poolCfg, config.PostgresConfig{
		MaxConns:       8,
		MinConns:       20,
		ConnMaxIdleSec: 15,
		ConnMaxLifeSec: 120,
	})

	assert.EqualValues(t, 8, poolCfg.MaxConns)
	assert.EqualValues(t, 0, poolCfg.MinConns, "min above max is ignored")
	assert.Equal(t, 15*time.Second, poolCfg.MaxConnIdleTime)
	assert.Equal(t, 2*time.Minute, poolCfg.MaxConnLifetime)
}

func TestNilHandlesPingWithError(t *testing.T) {
	var pg *Postgres
	assert.Error(t, pg.Ping(context.Background()))
	assert.Nil(t, pg.PoolHandle())

	var rd *Redis
	assert.Error(t, rd.Ping(context.Background()))
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "auth:revoked:abc", (&Redis{}).Key("auth", "revoked", "abc"))
	assert.Equal(t, "enroll:auth:revoked:abc", (&Redis{prefix: "enroll:"}).Key("auth", "revoked", "abc"))
}
