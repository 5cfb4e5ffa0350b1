package promocache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeed(t *testing.T) {
	f := Seed([]string{"SALE10", "FLAT30K", "COMBO21"})

	assert.True(t, f.MayContain("SALE10"))
	assert.True(t, f.MayContain("FLAT30K"))
	assert.False(t, f.MayContain("NEVERSEEN"))
}

func TestMayContain_CaseInsensitive(t *testing.T) {
	f := Seed([]string{"Sale10"})

	assert.True(t, f.MayContain("SALE10"))
	assert.True(t, f.MayContain("sale10"))
}

func TestAdd(t *testing.T) {
	f := New(10)

	assert.False(t, f.MayContain("LATE"))
	f.Add("LATE")
	assert.True(t, f.MayContain("LATE"))
}

func TestSeed_Empty(t *testing.T) {
	f := Seed(nil)

	assert.False(t, f.MayContain("ANYTHING"))
}

func TestNoFalseNegatives(t *testing.T) {
	codes := make([]string, 0, 10000)
	for i := range 10000 {
		codes = append(codes, fmt.Sprintf("CODE%06d", i))
	}
	f := Seed(codes)

	for _, code := range codes {
		if !f.MayContain(code) {
			t.Fatalf("added code %s reported absent", code)
		}
	}
}

func TestConcurrentAddAndProbe(t *testing.T) {
	f := New(1000)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				code := fmt.Sprintf("W%d-%d", i, j)
				f.Add(code)
				_ = f.MayContain(code)
			}
		}()
	}
	wg.Wait()

	assert.True(t, f.MayContain("W0-0"))
	assert.True(t, f.MayContain("W7-99"))
}
