package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("something broke").Build()

	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.False(t, err.Timestamp.IsZero())
	assert.Equal(t, "something broke", err.Error())
}

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	err := Newf("vendor returned status %d", 502).
		Category(CategoryVendor).
		Component("aerodata").
		Context("status_code", 502).
		Context("tail", "N12345").
		Build()

	assert.Equal(t, CategoryVendor, err.Category)
	assert.Equal(t, "aerodata", err.Component)

	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, 502, code)

	// GetContext returns a copy, not the live map
	ctx := err.GetContext()
	ctx["tail"] = "mutated"
	assert.Equal(t, "N12345", err.Context["tail"])
}

func TestUnwrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	wrapped := New(fmt.Errorf("fetch failed: %w", cause)).
		Category(CategoryNetwork).
		Build()

	assert.True(t, Is(wrapped, cause))
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryGeneric, CategoryOf(fmt.Errorf("plain")))
	assert.Equal(t, CategoryTimeout, CategoryOf(Newf("t").Category(CategoryTimeout).Build()))

	// wrapped enhanced errors are still found
	inner := Newf("rate limited").Category(CategoryVendorRateLimit).Build()
	outer := fmt.Errorf("batch: %w", inner)
	assert.True(t, IsRateLimited(outer))
}

func TestIsRecoverable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		category    ErrorCategory
		recoverable bool
	}{
		{CategoryTimeout, true},
		{CategoryExecutor, true},
		{CategoryVendor, true},
		{CategoryVendorRateLimit, true},
		{CategoryDatabase, false},
		{CategoryConfiguration, false},
	}
	for _, tc := range cases {
		err := Newf("x").Category(tc.category).Build()
		assert.Equal(t, tc.recoverable, IsRecoverable(err), "category %s", tc.category)
	}
}
