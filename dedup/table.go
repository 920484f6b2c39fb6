package dedup

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/utils"
)

var (
	// ErrDuplicateArticle is returned when an article with the same
	// fingerprint has already been admitted at some point in the table's
	// lifetime.
	ErrDuplicateArticle = errors.New("duplicate article")

	// ErrMalformedArticle is returned when the candidate has no usable title
	// and therefore no stable fingerprint.
	ErrMalformedArticle = errors.New("article has no usable title")
)

// AdmissionTable guards the processing queue: at most one article per
// fingerprint is ever admitted, across all runs. Admit computes and stamps
// the article's fingerprint as a side effect. Implementations must make the
// check-and-insert indivisible with respect to concurrent admissions.
type AdmissionTable interface {
	Admit(article *model.Article) error
}

// NormalizeText lowercases, trims and collapses internal whitespace so that
// cosmetic variations of the same title map to the same fingerprint.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint computes the sha256 fingerprint of an article from its
// normalized title and source name. Returns ErrMalformedArticle if the title
// normalizes to the empty string.
func Fingerprint(title string, sourceName string) (string, error) {
	normalizedTitle := NormalizeText(title)
	if normalizedTitle == "" {
		return "", ErrMalformedArticle
	}
	return utils.TextToSha256Hash(normalizedTitle + "|" + NormalizeText(sourceName)), nil
}

// InMemoryAdmissionTable keeps admitted fingerprints in a process local map.
// It is the default table for tests and single node development, the redis
// backed table should be used when admission must survive restarts.
type InMemoryAdmissionTable struct {
	m        sync.Mutex
	admitted map[string]bool
}

func NewInMemoryAdmissionTable() *InMemoryAdmissionTable {
	return &InMemoryAdmissionTable{
		admitted: make(map[string]bool),
	}
}

func (t *InMemoryAdmissionTable) Admit(article *model.Article) error {
	fingerprint, err := Fingerprint(article.Title, article.SourceName)
	if err != nil {
		return err
	}
	article.Fingerprint = fingerprint

	// Check-then-insert must be a single critical section, otherwise two
	// concurrent ingests of the same article would both pass the check.
	t.m.Lock()
	defer t.m.Unlock()
	if t.admitted[fingerprint] {
		return errors.Wrap(ErrDuplicateArticle, article.Title)
	}
	t.admitted[fingerprint] = true
	return nil
}
