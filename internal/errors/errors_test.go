package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderPopulatesMetadata(t *testing.T) {
	t.Parallel()

	err := Newf("device rejected rate %v", 192000.0).
		Component("device").
		Category(CategoryDeviceFormat).
		Context("sample_rate", 192000.0).
		Context("device", "DAC").
		Build()

	var enhanced *EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, "device", enhanced.Component)
	assert.Equal(t, CategoryDeviceFormat, enhanced.Category)
	assert.Equal(t, "device rejected rate 192000", err.Error())
	assert.False(t, enhanced.Timestamp.IsZero())

	ctx := enhanced.GetContext()
	assert.Equal(t, 192000.0, ctx["sample_rate"])
	assert.Equal(t, "DAC", ctx["device"])
}

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("bare").Build()

	var enhanced *EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, ComponentUnknown, enhanced.Component)
	assert.Equal(t, CategoryGeneric, enhanced.Category)
	assert.Nil(t, enhanced.GetContext())
}

func TestUnwrapPreservesChain(t *testing.T) {
	t.Parallel()

	base := NewStd("base failure")
	err := New(base).Category(CategoryTimeout).Build()

	assert.True(t, Is(err, base))
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	a := Newf("one").Category(CategoryTimeout).Build()
	b := Newf("two").Category(CategoryTimeout).Build()
	c := Newf("three").Category(CategoryDevice).Build()

	assert.True(t, Is(a, b), "same category matches")
	assert.False(t, Is(a, c), "different category does not")
}

func TestLogAttrs(t *testing.T) {
	t.Parallel()

	err := Newf("x").
		Component("engine").
		Category(CategoryState).
		Context("k", "v").
		Build()

	var enhanced *EnhancedError
	require.ErrorAs(t, err, &enhanced)
	attrs := enhanced.LogAttrs()
	assert.Contains(t, attrs, "component")
	assert.Contains(t, attrs, "engine")
	assert.Contains(t, attrs, "k")
	assert.Contains(t, attrs, "v")
}

func TestGetContextReturnsCopy(t *testing.T) {
	t.Parallel()

	err := Newf("x").Context("k", "v").Build()

	var enhanced *EnhancedError
	require.ErrorAs(t, err, &enhanced)
	ctx := enhanced.GetContext()
	ctx["k"] = "mutated"
	assert.Equal(t, "v", enhanced.GetContext()["k"])
}
