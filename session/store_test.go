package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorvus/datachat/memory"
)

func TestStore_GetOrCreate_Unknown(t *testing.T) {
	s := NewStore()

	id, mem := s.GetOrCreate("s1")
	require.Equal(t, "s1", id)
	require.NotNil(t, mem)
	assert.Equal(t, 0, mem.Len(), "fresh memory must hold no prior turns")

	// Same identifier resolves to the same memory object.
	mem.Add("user", "hello")
	_, again := s.GetOrCreate("s1")
	assert.Same(t, mem, again)
	assert.Equal(t, 1, again.Len())
}

func TestStore_GetOrCreate_Generated(t *testing.T) {
	s := NewStore()

	id1, mem1 := s.GetOrCreate("")
	id2, mem2 := s.GetOrCreate("")

	require.NotEmpty(t, id1)
	require.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2, "omitted ids must yield distinct sessions")
	assert.NotSame(t, mem1, mem2, "generated sessions must not share memory")
	assert.Equal(t, 2, s.Len())
}

func TestStore_SingleCreationUnderRace(t *testing.T) {
	s := NewStore()

	const workers = 16
	memories := make([]*memory.TokenMemory, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			_, memories[n] = s.GetOrCreate("contested")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, memories[0], memories[i], "worker %d got a diverging memory", i)
	}
	assert.Equal(t, 1, s.Len())
}

func TestStore_MemoryOptionsApplied(t *testing.T) {
	s := NewStore(func(o *memory.Options) {
		o.MaxTokens = 8
		o.Estimator = func(str string) int { return len(str) }
	})
	_, mem := s.GetOrCreate("s1")
	mem.Add("user", "aaaa")
	mem.Add("user", "bbbb")
	mem.Add("user", "cccc")
	assert.Equal(t, 2, mem.Len(), "configured ceiling must drive eviction")
}
