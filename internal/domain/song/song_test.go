package song

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewUserSubmission(t *testing.T) {
	s := Song{ID: "a", Title: "Song", Artist: "Band", Duration: 213 * time.Second}

	qs := NewUserSubmission(s, "alice")

	assert.Equal(t, s, qs.Song)
	assert.Equal(t, "alice", qs.SubmittedBy)
	assert.Equal(t, ProvenanceUserSearch, qs.Provenance.Kind)
	assert.Empty(t, qs.Provenance.SourceName)
	assert.WithinDuration(t, time.Now(), qs.AddedAt, time.Second)
}

func TestNewImported(t *testing.T) {
	s := Song{ID: "x", Title: "Imported"}

	qs := NewImported(s, "bob", "Road Trip Mix", "37i9dQZF1DXcBWIGoYBM5M")

	assert.Equal(t, s, qs.Song)
	assert.Equal(t, "bob", qs.SubmittedBy)
	assert.Equal(t, ProvenanceBulkImport, qs.Provenance.Kind)
	assert.Equal(t, "Road Trip Mix", qs.Provenance.SourceName)
	assert.Equal(t, "37i9dQZF1DXcBWIGoYBM5M", qs.Provenance.SourceID)
	assert.WithinDuration(t, time.Now(), qs.AddedAt, time.Second)
}
