// Package text_test tests input text normalization.
package text_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tts-studio/internal/text"
)

func TestSampleTextsAreNonEmptyAndCopied(t *testing.T) {
	t.Parallel()

	samples := text.SampleTexts()
	require.Len(t, samples, 6)

	for _, sample := range samples {
		assert.NotEmpty(t, sample)
	}

	// Mutating the returned slice must not leak into later calls.
	samples[0] = "mutated"
	assert.NotEqual(t, "mutated", text.SampleTexts()[0])
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer()

	got := normalizer.Normalize("  hello \t world\n\nagain  ")
	assert.Equal(t, "hello world again.", got)
}

func TestNormalizeFoldsTypography(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "em dash", input: "wait— no", want: "wait- no."},
		{name: "en dash", input: "pages 4–7", want: "pages 4-7."},
		{name: "ellipsis char", input: "well…", want: "well..."},
		{name: "smart double quotes", input: "she said “hi”", want: `she said "hi".`},
		{name: "smart single quotes", input: "it’s ‘fine’", want: "it's 'fine'."},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, normalizer.Normalize(testCase.input))
		})
	}
}

func TestNormalizeEnsuresSentenceEnding(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer()

	assert.Equal(t, "hello.", normalizer.Normalize("hello"))
	assert.Equal(t, "hello!", normalizer.Normalize("hello!"))
	assert.Equal(t, "really?", normalizer.Normalize("really?"))
	assert.Equal(t, "done.", normalizer.Normalize("done."))

	// Non-terminal punctuation still gets a period.
	assert.Equal(t, "wait,.", normalizer.Normalize("wait,"))
}

func TestNormalizeEmptyInput(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer()

	assert.Empty(t, normalizer.Normalize(""))
	assert.Empty(t, normalizer.Normalize("   "))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer()

	require.NoError(t, normalizer.Validate("hello.", 500))

	err := normalizer.Validate("", 500)
	require.ErrorIs(t, err, text.ErrTextEmpty)

	err = normalizer.Validate(strings.Repeat("a", 501), 500)
	require.ErrorIs(t, err, text.ErrTextTooLong)
}

func TestValidateCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer()

	// 10 multibyte runes are well under a 20-rune limit even though the
	// byte count is not.
	require.NoError(t, normalizer.Validate(strings.Repeat("ü", 10), 20))
}
