package port

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByCode(t *testing.T) {
	err := NotFoundf("commit %s not found", "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Platformf(CodePlatformRateLimit, "slow down")))
	assert.True(t, IsRetryable(Platformf(CodePlatformTimeout, "timed out")))
	assert.False(t, IsRetryable(Platformf(CodePlatformAuth, "bad token")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}
