package dedup

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postmux/postmux/model"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "storm hits city", NormalizeText(" STORM   hits city "))
	assert.Equal(t, "ap", NormalizeText("AP"))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestFingerprint_EqualAfterNormalization(t *testing.T) {
	first, err := Fingerprint("Storm hits city", "AP")
	require.NoError(t, err)
	second, err := Fingerprint(" STORM   hits city ", "ap")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestFingerprint_DifferentSource(t *testing.T) {
	first, err := Fingerprint("Storm hits city", "AP")
	require.NoError(t, err)
	second, err := Fingerprint("Storm hits city", "Reuters")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAdmit_RejectsDuplicate(t *testing.T) {
	table := NewInMemoryAdmissionTable()

	first := &model.Article{Title: "Storm hits city", SourceName: "AP"}
	require.NoError(t, table.Admit(first))
	assert.NotEmpty(t, first.Fingerprint)

	second := &model.Article{Title: " STORM   hits city ", SourceName: "ap"}
	err := table.Admit(second)
	assert.ErrorIs(t, err, ErrDuplicateArticle)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestAdmit_RejectsMissingTitle(t *testing.T) {
	table := NewInMemoryAdmissionTable()

	err := table.Admit(&model.Article{Title: "   ", SourceName: "AP"})
	assert.ErrorIs(t, err, ErrMalformedArticle)

	// Rejection has no side effect, a real title from the same source is
	// still admissible.
	assert.NoError(t, table.Admit(&model.Article{Title: "Storm hits city", SourceName: "AP"}))
}

// Hammer the table with concurrent admissions of the same logical article,
// exactly one attempt must win regardless of interleaving.
func TestAdmit_ConcurrentSameFingerprint(t *testing.T) {
	table := NewInMemoryAdmissionTable()

	const attempts = 64
	var wg sync.WaitGroup
	admitted := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			article := &model.Article{Title: "Storm hits city", SourceName: "AP"}
			if err := table.Admit(article); err == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	assert.Equal(t, 1, len(admitted))
}
