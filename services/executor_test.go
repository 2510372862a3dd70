package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNameForAccount(t *testing.T) {
	cases := map[string]string{
		"Alice":          "alice",
		"bob.the-2nd":    "bob_the_2nd",
		"  weird name  ": "weird_name",
		"UPPER__case":    "upper_case",
	}
	for in, want := range cases {
		assert.Equal(t, want, KeyNameForAccount(in), "input %q", in)
	}
}

func TestBuildCommandReplacesKeyName(t *testing.T) {
	raw := `soundness-cli send --proof-file=proof.bin --key-name="generated key" --network=testnet`
	got := BuildCommand(raw, "alice")
	assert.Contains(t, got, "--key-name=alice")
	assert.NotContains(t, got, "generated key")
	assert.Contains(t, got, "--proof-file=proof.bin")
}

func TestBuildCommandSpaceSeparatedFlag(t *testing.T) {
	raw := "soundness-cli send --key-name default --proof-file proof.bin"
	got := BuildCommand(raw, "bob")
	assert.Contains(t, got, "--key-name=bob")
	assert.NotContains(t, got, "default")
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize(`soundness-cli send --key-name="my key" --network testnet`)
	require.NoError(t, err)
	assert.Equal(t, []string{"soundness-cli", "send", "--key-name=my key", "--network", "testnet"}, tokens)
}

func TestTokenizeEmpty(t *testing.T) {
	_, err := Tokenize("   ")
	assert.Error(t, err)
}

func TestParseTransactionResult(t *testing.T) {
	output := `
Submitting proof...
Status: success
Transaction Digest: 0xdeadbeef
Explorer Link: https://explorer.example.com/tx/0xdeadbeef
Proof Blob ID: blob-42
`
	r := parseTransactionResult(output)
	assert.Equal(t, "success", r.Status)
	assert.Equal(t, "0xdeadbeef", r.Digest)
	assert.Equal(t, "https://explorer.example.com/tx/0xdeadbeef", r.ExplorerLink)
	assert.Equal(t, "blob-42", r.ProofBlobID)
}

func TestParseTransactionResultPartialOutput(t *testing.T) {
	r := parseTransactionResult("Transaction Digest: 0xabc\n")
	assert.Equal(t, "0xabc", r.Digest)
	assert.Equal(t, "unknown", r.Status)
	assert.Equal(t, "unknown", r.ExplorerLink)
	assert.Equal(t, "unknown", r.ProofBlobID)
}

func TestExtractErrorLinePrefersKnownPrefixes(t *testing.T) {
	output := "reading key store\nError: password mismatch\nexiting\n"
	assert.Equal(t, "Error: password mismatch", extractErrorLine(output))
}

func TestExtractErrorLineFallsBackToLastLine(t *testing.T) {
	output := "step one\nstep two\nsomething went sideways\n\n"
	assert.Equal(t, "something went sideways", extractErrorLine(output))
}

func TestExtractErrorLineEmptyOutput(t *testing.T) {
	assert.Equal(t, "no output", extractErrorLine(""))
}
