package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes(t *testing.T) {
	t.Run("empty set", func(t *testing.T) {
		s := Attributes()
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, "", s.Key())
		_, ok := s.Get(NameKind)
		assert.False(t, ok)
	})

	t.Run("one attribute per kind", func(t *testing.T) {
		s := Attributes(Name("first"), Name("second"))
		assert.Equal(t, 1, s.Len())
		a, ok := s.Get(NameKind)
		require.True(t, ok)
		assert.Equal(t, Name("second"), a)
	})

	t.Run("key is order independent", func(t *testing.T) {
		a := Attributes(Name("x"))
		b := Attributes(Name("x"))
		assert.Equal(t, a.Key(), b.Key())

		c := Attributes(Name("y"))
		assert.NotEqual(t, a.Key(), c.Key())
	})
}

func TestAttributeSetContains(t *testing.T) {
	named := Attributes(Name("primary"))

	assert.True(t, named.Contains(Attributes()))
	assert.True(t, named.Contains(Attributes(Name("primary"))))
	assert.False(t, named.Contains(Attributes(Name("secondary"))))
	assert.False(t, Attributes().Contains(named))
}

func TestQualifiers(t *testing.T) {
	named := Attributes(Name("primary"))

	t.Run("empty collection matches everything", func(t *testing.T) {
		q := NewQualifiers()
		assert.True(t, q.Qualify(Attributes()))
		assert.True(t, q.Qualify(named))
	})

	t.Run("all members must match", func(t *testing.T) {
		q := NewQualifiers(SelectName("primary"), SelectName("secondary"))
		assert.False(t, q.Qualify(named))

		q = NewQualifiers(SelectName("primary"))
		assert.True(t, q.Qualify(named))
	})
}

func TestSelectName(t *testing.T) {
	q := SelectName("primary")

	assert.True(t, q.Qualify(Attributes(Name("primary"))))
	assert.False(t, q.Qualify(Attributes(Name("secondary"))))
	assert.False(t, q.Qualify(Attributes()))
}
