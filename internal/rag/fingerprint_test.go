package rag

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]+$`)

func TestFingerprintKnownValue(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Fingerprint("abc"))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint(""))
}

func TestFingerprintDeterministic(t *testing.T) {
	inputs := []string{
		"",
		" ",
		"Paris is the capital of France.",
		"Paris is the capital of France. ",
		"paris is the capital of france.",
		"你好，世界",
		"é",
		"é",
		strings.Repeat("a", 10000),
		strings.Repeat("a", 10001),
		"line\nbreak",
		"line\rbreak",
	}

	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		fp := Fingerprint(in)
		require.Len(t, fp, FingerprintLength)
		require.Regexp(t, hexPattern, fp)
		require.Equal(t, fp, Fingerprint(in), "same input must give same fingerprint")

		if prev, dup := seen[fp]; dup {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[fp] = in
	}
}
