package thinking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_NoMarker(t *testing.T) {
	answer, thinking := Split("just an answer")

	assert.Equal(t, "just an answer", answer)
	assert.Empty(t, thinking)
}

func TestSplit_InlineMarker(t *testing.T) {
	answer, thinking := Split("<think>weighing options</think>Take the refund path.")

	assert.Equal(t, "Take the refund path.", answer)
	assert.Equal(t, "weighing options", thinking)
}

func TestSplit_MarkerMidText(t *testing.T) {
	answer, thinking := Split("Sure. <think>checking policy</think> You qualify.")

	assert.Equal(t, "Sure.  You qualify.", answer)
	assert.Equal(t, "checking policy", thinking)
}

func TestSplit_CaseInsensitive(t *testing.T) {
	answer, thinking := Split("<THINK>caps</THINK>answer")

	assert.Equal(t, "answer", answer)
	assert.Equal(t, "caps", thinking)
}

func TestSplit_UnterminatedMarker(t *testing.T) {
	answer, thinking := Split("partial <think>never closed")

	assert.Equal(t, "partial", answer)
	assert.Equal(t, "never closed", thinking)
}

func TestFromRawResponse_MetadataField(t *testing.T) {
	raw := `{"choices":[{"message":{"content":"hi","reasoning":"hidden chain"}}]}`

	assert.Equal(t, "hidden chain", FromRawResponse(raw))
}

func TestFromRawResponse_ProbesAlternateKeys(t *testing.T) {
	raw := `{"choices":[{"message":{"content":"hi","reasoning_content":"alt"}}]}`

	assert.Equal(t, "alt", FromRawResponse(raw))
}

func TestFromRawResponse_MalformedOrEmpty(t *testing.T) {
	assert.Empty(t, FromRawResponse(""))
	assert.Empty(t, FromRawResponse("not json"))
	assert.Empty(t, FromRawResponse(`{"choices":[]}`))
	assert.Empty(t, FromRawResponse(`{"choices":[{"message":{"content":"hi"}}]}`))
}

func TestExtract_InlineWinsOverMetadata(t *testing.T) {
	raw := `{"choices":[{"message":{"reasoning":"meta"}}]}`

	answer, thinking := Extract("<think>inline</think>text", raw)

	assert.Equal(t, "text", answer)
	assert.Equal(t, "inline", thinking)
}

func TestExtract_FallsBackToMetadata(t *testing.T) {
	raw := `{"choices":[{"message":{"reasoning":"meta"}}]}`

	answer, thinking := Extract("plain answer", raw)

	assert.Equal(t, "plain answer", answer)
	assert.Equal(t, "meta", thinking)
}
