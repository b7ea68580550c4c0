package process

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAlive(t *testing.T) {
	assert.True(t, IsAlive(os.Getpid()))
	assert.False(t, IsAlive(0))
	assert.False(t, IsAlive(-1))
}
