package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReturnsUsableLogger(t *testing.T) {
	log := New("kvs-test")
	assert.NotNil(t, log)
	log.Infow("hello", "key", "value")
}

func TestNewHonorsDevelopmentEnv(t *testing.T) {
	t.Setenv("KVS_ENV", "development")

	log := New("kvs-test")
	assert.NotNil(t, log)
}
