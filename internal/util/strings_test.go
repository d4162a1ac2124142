package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinOrNone(t *testing.T) {
	assert.Equal(t, "(none)", JoinOrNone(nil))
	assert.Equal(t, "create-user, start", JoinOrNone([]string{"create-user", "start"}))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "actions", Pluralize(0, "action", "actions"))
	assert.Equal(t, "action", Pluralize(1, "action", "actions"))
	assert.Equal(t, "errors", Pluralize(3, "error", "errors"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "1.95.3", FirstLine("\r\n 1.95.3 \r\ncommit\n"))
	assert.Equal(t, "", FirstLine("\n  \n"))
	assert.Equal(t, "", FirstLine(""))
}
