package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchKey(t *testing.T) {
	k := SearchKey("b1", "https://img/a.jpg", 0, 20)
	assert.True(t, strings.HasPrefix(k, "artseek:search:b1:"))
	assert.True(t, strings.HasSuffix(k, ":0:20"))

	assert.Equal(t, k, SearchKey("b1", "https://img/a.jpg", 0, 20))
	assert.NotEqual(t, k, SearchKey("b2", "https://img/a.jpg", 0, 20))
	assert.NotEqual(t, k, SearchKey("b1", "https://img/b.jpg", 0, 20))
	assert.NotEqual(t, k, SearchKey("b1", "https://img/a.jpg", 20, 20))
}
