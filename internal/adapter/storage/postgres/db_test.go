package postgres

import (
	"context"
	"testing"

	"payout-settler/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewPool_InvalidConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "worker",
		DBName:  "payouts",
		SSLMode: "sometimes",
	}

	pool, err := NewPool(context.Background(), cfg, zerolog.Nop())
	assert.Nil(t, pool)
	assert.ErrorContains(t, err, "parsing database config")
}

func TestNewPool_Unreachable(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "worker",
		Password: "secret",
		DBName:   "payouts",
		SSLMode:  "disable",
		MaxConns: 2,
	}

	pool, err := NewPool(context.Background(), cfg, zerolog.Nop())
	assert.Nil(t, pool)
	assert.ErrorContains(t, err, "pinging database")
}
