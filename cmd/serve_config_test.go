package cmd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustParseIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		panic("invalid test IP: " + s)
	}
	return ip
}

func TestLoadEnvIfEmpty(t *testing.T) {
	t.Setenv("TEST_LOAD_ENV_IF_EMPTY", "from-env")

	target := ""
	loadEnvIfEmpty(&target, "TEST_LOAD_ENV_IF_EMPTY")
	assert.Equal(t, "from-env", target)

	target = "already-set"
	loadEnvIfEmpty(&target, "TEST_LOAD_ENV_IF_EMPTY")
	assert.Equal(t, "already-set", target)
}

func TestValidateSecureURLRejectsHTTP(t *testing.T) {
	err := validateSecureURL("http://identity.example.com", "identity service URL", false)
	assert.Error(t, err)
}

func TestValidateSecureURLRejectsLocalhost(t *testing.T) {
	err := validateSecureURL("https://localhost", "identity service URL", false)
	assert.Error(t, err)
}

func TestValidateSecureURLAllowsPrivateWhenFlagged(t *testing.T) {
	err := validateSecureURL("http://identity.svc.cluster.local", "identity service URL", true)
	assert.NoError(t, err)
}

func TestValidateSecureURLRejectsEmpty(t *testing.T) {
	err := validateSecureURL("", "identity service URL", false)
	assert.Error(t, err)
}

func TestIsPrivateOrLoopbackIP(t *testing.T) {
	assert.True(t, isPrivateOrLoopbackIP(mustParseIP("127.0.0.1")))
	assert.True(t, isPrivateOrLoopbackIP(mustParseIP("10.0.0.5")))
	assert.True(t, isPrivateOrLoopbackIP(mustParseIP("192.168.1.1")))
	assert.False(t, isPrivateOrLoopbackIP(mustParseIP("8.8.8.8")))
}
