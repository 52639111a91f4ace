package sortutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStablePathSortDoesNotMutate(t *testing.T) {
	in := []string{"b.sas", "a.sas", "c.sas"}
	out := StablePathSort(in)
	assert.Equal(t, []string{"a.sas", "b.sas", "c.sas"}, out)
	assert.Equal(t, []string{"b.sas", "a.sas", "c.sas"}, in)
}

func TestStablePathSortCodepointOrder(t *testing.T) {
	out := StablePathSort([]string{"mp_b.sas", "MP_a.sas", "mp_A.sas", "_x.sas"})
	assert.Equal(t, []string{"MP_a.sas", "_x.sas", "mp_A.sas", "mp_b.sas"}, out)
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedup([]string{"b", "a", "b", "a"}))
}
