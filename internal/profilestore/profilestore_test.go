package profilestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllReturnsUnderlyingMap(t *testing.T) {
	profiles := map[string]interface{}{"small": map[string]interface{}{"image": "alpine"}}
	s := New(profiles)
	assert.Equal(t, profiles, s.All())
}

func TestNewNormalizesNilToEmptyMap(t *testing.T) {
	s := New(nil)
	assert.NotNil(t, s.All())
	assert.Empty(t, s.All())
}
