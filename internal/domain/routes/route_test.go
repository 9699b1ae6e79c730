package routes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSearchFilterQuery(t *testing.T) {
	q := SearchFilter{Origin: " São Paulo ", Species: "cão"}.Query()
	assert.Equal(t, "São Paulo", q.Get("origin"))
	assert.Equal(t, "cão", q.Get("species"))
	assert.False(t, q.Has("destination"))
	assert.False(t, q.Has("size"))
	assert.Empty(t, SearchFilter{}.Query().Encode())
}

func TestRouteParamsValidate(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	valid := RouteParams{
		Origin:             "Curitiba",
		OriginDate:         start,
		Destination:        "Florianópolis",
		DestinationDate:    start.Add(6 * time.Hour),
		AvailableSlots:     3,
		SpeciesAccepted:    "cão,gato",
		AnimalSizeAccepted: "pequeno",
		Stops:              []Stop{{Location: "Joinville"}},
	}
	assert.NoError(t, valid.Validate())

	noSlots := valid
	noSlots.AvailableSlots = 0
	assert.ErrorIs(t, noSlots.Validate(), ErrInvalidRoute)

	badStop := valid
	badStop.Stops = []Stop{{}}
	assert.ErrorIs(t, badStop.Validate(), ErrInvalidRoute)

	backwards := valid
	backwards.DestinationDate = start.Add(-time.Hour)
	assert.ErrorIs(t, backwards.Validate(), ErrInvalidWindow)
}
