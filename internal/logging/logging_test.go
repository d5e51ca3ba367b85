package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("relay", "debug").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("relay", "").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("relay", "loud").GetLevel())
}
