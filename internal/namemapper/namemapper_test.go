package namemapper

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var legalNamespace = regexp.MustCompile(`^kbatch-[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

func TestMapSimpleIdentity(t *testing.T) {
	assert.Equal(t, "kbatch-alice", Map("alice"))
}

func TestMapIdempotent(t *testing.T) {
	// P1: mapping a produced namespace again gives the same result every
	// time (it is already legal, so no hash suffix is added).
	first := Map("alice")
	second := Map(first)
	assert.Equal(t, Map(first), second)
}

func TestMapDeterministic(t *testing.T) {
	assert.Equal(t, Map("Alice@Example.COM"), Map("Alice@Example.COM"))
}

func TestMapSanitizesIllegalCharacters(t *testing.T) {
	result := Map("Alice@Example.COM")
	assert.Regexp(t, legalNamespace, result)
	assert.Contains(t, result, "kbatch-alice-example-com--")
}

func TestMapAllIllegalCharacters(t *testing.T) {
	// P2: an all-illegal identity must not leave a third dash after the
	// "kbatch-" prefix (sanitize("") + "--" + hash would otherwise yield
	// "kbatch---<hash>", which fails the namespace legality regex).
	result := Map("@@@@@@")
	assert.Regexp(t, legalNamespace, result)
	assert.Contains(t, result, "kbatch--")
	assert.NotContains(t, result, "kbatch---")
}

func TestMapTruncatesLongIdentities(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	result := Map(long)
	assert.LessOrEqual(t, len(result), 63)
}

func TestMapDifferentInputsDifferentOutputs(t *testing.T) {
	assert.NotEqual(t, Map("alice"), Map("bob"))
}

func TestMapLegalForVariousInputs(t *testing.T) {
	inputs := []string{"alice", "Alice@Example.COM", "user name with spaces", "under_score", "testuser2"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			result := Map(in)
			assert.Regexp(t, legalNamespace, result)
			assert.LessOrEqual(t, len(result), 63, fmt.Sprintf("namespace %q too long", result))
		})
	}
}
