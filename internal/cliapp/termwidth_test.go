package cliapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayWidth_ASCIIIsOneColumnPerRune(t *testing.T) {
	assert.Equal(t, 5, displayWidth("hello"))
}

func TestTruncateForWidth_ShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "short", truncateForWidth("short", 20))
}

func TestTruncateForWidth_LongStringCutWithEllipsis(t *testing.T) {
	got := truncateForWidth("20260731_120000_implementer_extended_name", 10)
	assert.LessOrEqual(t, displayWidth(got), 10)
	assert.Contains(t, got, "…")
}
