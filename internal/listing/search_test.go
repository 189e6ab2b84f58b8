package listing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kiaSearch() Search {
	s := NewSearch("Kia", "52405",
		Constrained(NewModel("Soul").WithYears(None, Some(2012))),
		Named("Rio"),
	)
	s.PriceEnd = Some(8000)
	s.YearStart = Some(2008)
	return s
}

func TestConstraintsInheritance(t *testing.T) {
	cs := kiaSearch().Constraints()
	require.Len(t, cs, 2)

	soul := cs[0]
	assert.Equal(t, "Soul", soul.Model)
	assert.Equal(t, Some(2008), soul.YearStart, "unset model bound falls back to the search")
	assert.Equal(t, Some(2012), soul.YearEnd)
	assert.Equal(t, Some(DefaultMileageCeiling), soul.MileageCeiling)
	assert.Equal(t, Some(8000), soul.PriceEnd)
	assert.Equal(t, "52405", soul.Zip)
	assert.Equal(t, DefaultDistance, soul.Distance)

	rio := cs[1]
	assert.Equal(t, "Rio", rio.Model)
	assert.Equal(t, Some(2008), rio.YearStart)
	assert.False(t, rio.YearEnd.IsSet())
	assert.Equal(t, Some(8000), rio.PriceEnd)
}

func TestConstraintsModelMileageOverride(t *testing.T) {
	s := NewSearch("Toyota", "52405", Constrained(NewModel("Camry").WithMileage(Some(60000))))
	s.MileageCeiling = Some(150000)

	cs := s.Constraints()
	require.Len(t, cs, 1)
	assert.Equal(t, Some(60000), cs[0].MileageCeiling)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, kiaSearch().Validate())

	unconstrained := NewSearch("Kia", "52405", Named("Soul"))
	assert.NoError(t, unconstrained.Validate(), "both year bounds unset is valid")

	bad := []func(*Search){
		func(s *Search) { s.Make = " " },
		func(s *Search) { s.Models = nil },
		func(s *Search) { s.YearStart, s.YearEnd = Some(2015), Some(2010) },
		func(s *Search) { s.PriceStart, s.PriceEnd = Some(9000), Some(8000) },
		func(s *Search) { s.DistanceRadius = 0 },
		func(s *Search) { s.Models = []ModelEntry{Named("")} },
		func(s *Search) {
			s.Models = []ModelEntry{Constrained(NewModel("Soul").WithYears(Some(2014), Some(2012)))}
		},
	}
	for i, mutate := range bad {
		s := kiaSearch()
		mutate(&s)
		assert.Error(t, s.Validate(), "case %d", i)
	}
}

func TestSearchJSONShape(t *testing.T) {
	data, err := json.Marshal(kiaSearch())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"make": "Kia",
		"models": [
			{"name": "Soul", "mileage": 100000, "year_start": -1, "year_end": 2012},
			{"type": "string", "value": "Rio"}
		],
		"year_start": 2008,
		"year_end": -1,
		"mileage": 100000,
		"zip": "52405",
		"distance": 100,
		"price_start": 0,
		"price_end": 8000
	}`, string(data))
}

func TestSearchJSONRoundTrip(t *testing.T) {
	original := kiaSearch()
	original.PriceStart = Some(2500)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var back Search
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, original.Constraints(), back.Constraints())
	assert.Equal(t, original.String(), back.String())
}

func TestSearchJSONDefaults(t *testing.T) {
	var s Search
	require.NoError(t, json.Unmarshal([]byte(`{"make":"Honda","models":[{"name":"Fit"}],"zip":"10001"}`), &s))

	assert.Equal(t, Some(DefaultMileageCeiling), s.MileageCeiling)
	assert.Equal(t, DefaultDistance, s.DistanceRadius)
	assert.False(t, s.PriceStart.IsSet())
	assert.False(t, s.PriceEnd.IsSet())

	m, ok := s.Models[0].Model()
	require.True(t, ok)
	assert.Equal(t, Some(DefaultMileageCeiling), m.MileageCeiling)
}

func TestModelEntryJSONRejectsEmpty(t *testing.T) {
	var e ModelEntry
	assert.Error(t, json.Unmarshal([]byte(`{}`), &e))
}
