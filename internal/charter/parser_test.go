package charter

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "PROJECT.md"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCharterMissing))
}

func TestParseText_NoRecognizedSection(t *testing.T) {
	_, err := ParseText("# Random Notes\n\nJust some prose, no headers we recognize.\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCharterUnparseable))
}

func TestParseText_BasicCharter(t *testing.T) {
	text := `# PROJECT

## GOALS

- Ship user authentication
- Support password reset

## SCOPE

- ✅ JWT-based session tokens
- ❌ Social login providers

## CONSTRAINTS

- Must use the existing Postgres instance
`
	rec, err := ParseText(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ship user authentication", "Support password reset"}, rec.Goals)
	assert.Equal(t, []string{"JWT-based session tokens"}, rec.ScopeIn)
	assert.Equal(t, []string{"Social login providers"}, rec.ScopeOut)
	assert.Equal(t, []string{"Must use the existing Postgres instance"}, rec.Constraints)
}

func TestParseText_ScopeSubsectionHeaders(t *testing.T) {
	text := `## SCOPE

### In Scope
- Rate limiting middleware
- Request logging

### Out of Scope
- Multi-region deployment
`
	rec, err := ParseText(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rate limiting middleware", "Request logging"}, rec.ScopeIn)
	assert.Equal(t, []string{"Multi-region deployment"}, rec.ScopeOut)
}

func TestParseText_UnmarkedScopeItemDefaultsInScopeOnlyFirst(t *testing.T) {
	text := `## SCOPE

- Add retry logic to the webhook sender
- ✅ Structured error responses
- Backfill historical rows
`
	rec, err := ParseText(text)
	require.NoError(t, err)
	// First unmarked item becomes scope_in; second unmarked item (after an
	// in-scope item has already been seen) is ignored per spec.md §4.1.
	assert.Equal(t, []string{"Add retry logic to the webhook sender", "Structured error responses"}, rec.ScopeIn)
	assert.Empty(t, rec.ScopeOut)
}

func TestParseText_DeduplicatesScopeSets(t *testing.T) {
	text := `## SCOPE

- ✅ Rate limiting
- ✅ Rate limiting
- ❌ Billing integration
- ❌ Billing integration
`
	rec, err := ParseText(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rate limiting"}, rec.ScopeIn)
	assert.Equal(t, []string{"Billing integration"}, rec.ScopeOut)
}

// TestParseText_RobustToMessyFormatting covers scenario F from spec.md §8:
// numbered, bolded, emoji-prefixed items interleaved with horizontal rules.
func TestParseText_RobustToMessyFormatting(t *testing.T) {
	text := `## GOALS

1. **Ship** the checkout flow - this unblocks Q3 launch
2. 🚀 Reduce p95 latency under 200ms

---

## SCOPE

- ✅ **Stripe** integration
- ❌ 🪙 Crypto payments - not regulated yet in our markets

***

## CONSTRAINTS

1. **No** new infra - budget frozen until Q4
`
	rec, err := ParseText(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ship the checkout flow", "Reduce p95 latency under 200ms"}, rec.Goals)
	assert.Equal(t, []string{"Stripe integration"}, rec.ScopeIn)
	assert.Equal(t, []string{"Crypto payments"}, rec.ScopeOut)
	assert.Equal(t, []string{"No new infra"}, rec.Constraints)
}

func TestParseText_BlankLinesAndUnrelatedHeadingsIgnored(t *testing.T) {
	text := `## GOALS


- Keep the API backwards compatible

### Background

Some prose that should not be treated as a bullet section.

## CONSTRAINTS

- Ship by end of quarter
`
	rec, err := ParseText(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Keep the API backwards compatible"}, rec.Goals)
	assert.Equal(t, []string{"Ship by end of quarter"}, rec.Constraints)
}
