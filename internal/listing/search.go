package listing

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultMileageCeiling applies when a search or model sets no mileage limit
	DefaultMileageCeiling = 100000
	// DefaultDistance is the search radius in miles
	DefaultDistance = 100
)

// Model narrows a search to one model with its own mileage and year bounds
type Model struct {
	Name           string
	MileageCeiling Optional
	YearStart      Optional
	YearEnd        Optional
}

// NewModel returns a model constraint with the default mileage ceiling
func NewModel(name string) Model {
	return Model{
		Name:           name,
		MileageCeiling: Some(DefaultMileageCeiling),
	}
}

// WithYears sets the year bounds; pass None for an open end
func (m Model) WithYears(start, end Optional) Model {
	m.YearStart = start
	m.YearEnd = end
	return m
}

// WithMileage sets the mileage ceiling
func (m Model) WithMileage(ceiling Optional) Model {
	m.MileageCeiling = ceiling
	return m
}

// ModelEntry is either a bare model name, which inherits everything from its
// Search, or a Model carrying its own mileage and year bounds.
type ModelEntry struct {
	name  string
	model *Model
}

// Named returns a bare-name entry
func Named(name string) ModelEntry {
	return ModelEntry{name: name}
}

// Constrained returns an entry with its own bounds
func Constrained(m Model) ModelEntry {
	return ModelEntry{name: m.Name, model: &m}
}

// Name is the model name to select on the site
func (e ModelEntry) Name() string {
	return e.name
}

// Model returns the entry's own bounds, if it has any
func (e ModelEntry) Model() (Model, bool) {
	if e.model == nil {
		return Model{}, false
	}
	return *e.model, true
}

// String renders the entry for menus
func (e ModelEntry) String() string {
	m, ok := e.Model()
	if !ok {
		return e.name
	}
	return fmt.Sprintf("%s (mileage <= %s, years %s-%s)", m.Name, m.MileageCeiling, m.YearStart, m.YearEnd)
}

type modelJSON struct {
	Type      string    `json:"type,omitempty"`
	Value     string    `json:"value,omitempty"`
	Name      string    `json:"name,omitempty"`
	Mileage   *Optional `json:"mileage,omitempty"`
	YearStart *Optional `json:"year_start,omitempty"`
	YearEnd   *Optional `json:"year_end,omitempty"`
}

// MarshalJSON encodes bare names as {"type":"string","value":name}
func (e ModelEntry) MarshalJSON() ([]byte, error) {
	m, ok := e.Model()
	if !ok {
		return json.Marshal(modelJSON{Type: "string", Value: e.name})
	}
	return json.Marshal(modelJSON{
		Name:      m.Name,
		Mileage:   &m.MileageCeiling,
		YearStart: &m.YearStart,
		YearEnd:   &m.YearEnd,
	})
}

// UnmarshalJSON accepts both entry shapes
func (e *ModelEntry) UnmarshalJSON(data []byte) error {
	var raw modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Type == "string" {
		*e = Named(raw.Value)
		return nil
	}
	if raw.Name == "" {
		return fmt.Errorf("model entry has neither a name nor a string value")
	}

	m := NewModel(raw.Name)
	if raw.Mileage != nil {
		m.MileageCeiling = *raw.Mileage
	}
	if raw.YearStart != nil {
		m.YearStart = *raw.YearStart
	}
	if raw.YearEnd != nil {
		m.YearEnd = *raw.YearEnd
	}
	*e = Constrained(m)
	return nil
}

// Search is one user-defined constraint bundle: a make, the models to look
// for and the bounds shared by all of them.
type Search struct {
	Make           string
	Models         []ModelEntry
	MileageCeiling Optional
	YearStart      Optional
	YearEnd        Optional
	Zip            string
	DistanceRadius int
	PriceStart     Optional
	PriceEnd       Optional
}

// NewSearch returns a search with the default mileage ceiling and radius
func NewSearch(carMake, zip string, models ...ModelEntry) Search {
	return Search{
		Make:           carMake,
		Models:         models,
		MileageCeiling: Some(DefaultMileageCeiling),
		Zip:            zip,
		DistanceRadius: DefaultDistance,
	}
}

// Validate checks the bounds are coherent
func (s Search) Validate() error {
	if strings.TrimSpace(s.Make) == "" {
		return fmt.Errorf("search has no make")
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("search for %s has no models", s.Make)
	}
	if err := checkRange("year", s.YearStart, s.YearEnd); err != nil {
		return fmt.Errorf("search for %s: %w", s.Make, err)
	}
	if err := checkRange("price", s.PriceStart, s.PriceEnd); err != nil {
		return fmt.Errorf("search for %s: %w", s.Make, err)
	}
	if s.DistanceRadius <= 0 {
		return fmt.Errorf("search for %s: distance must be positive, got %d", s.Make, s.DistanceRadius)
	}

	for _, entry := range s.Models {
		if strings.TrimSpace(entry.Name()) == "" {
			return fmt.Errorf("search for %s has a model without a name", s.Make)
		}
		if m, ok := entry.Model(); ok {
			if err := checkRange("year", m.YearStart, m.YearEnd); err != nil {
				return fmt.Errorf("model %s %s: %w", s.Make, m.Name, err)
			}
		}
	}
	return nil
}

func checkRange(what string, start, end Optional) error {
	lo, hasLo := start.Get()
	hi, hasHi := end.Get()
	if hasLo && hasHi && hi < lo {
		return fmt.Errorf("%s end %d is before %s start %d", what, hi, what, lo)
	}
	return nil
}

// Constraints is a search resolved for a single model
type Constraints struct {
	Make           string
	Model          string
	MileageCeiling Optional
	YearStart      Optional
	YearEnd        Optional
	PriceStart     Optional
	PriceEnd       Optional
	Zip            string
	Distance       int
}

// Constraints expands the search into one resolved constraint set per model
// entry, in entry order. A Model's own bounds win when set.
func (s Search) Constraints() []Constraints {
	result := make([]Constraints, 0, len(s.Models))
	for _, entry := range s.Models {
		c := Constraints{
			Make:           s.Make,
			Model:          entry.Name(),
			MileageCeiling: s.MileageCeiling,
			YearStart:      s.YearStart,
			YearEnd:        s.YearEnd,
			PriceStart:     s.PriceStart,
			PriceEnd:       s.PriceEnd,
			Zip:            s.Zip,
			Distance:       s.DistanceRadius,
		}
		if m, ok := entry.Model(); ok {
			c.MileageCeiling = firstSet(m.MileageCeiling, s.MileageCeiling)
			c.YearStart = firstSet(m.YearStart, s.YearStart)
			c.YearEnd = firstSet(m.YearEnd, s.YearEnd)
		}
		result = append(result, c)
	}
	return result
}

func firstSet(values ...Optional) Optional {
	for _, v := range values {
		if v.IsSet() {
			return v
		}
	}
	return None
}

// String renders the constraints for logs
func (c Constraints) String() string {
	return fmt.Sprintf("%s %s", c.Make, c.Model)
}

// String renders the search for menus
func (s Search) String() string {
	names := make([]string, len(s.Models))
	for i, m := range s.Models {
		names[i] = m.String()
	}
	return fmt.Sprintf("%s [%s] zip %s within %d mi, price %s-%s, years %s-%s, mileage <= %s",
		s.Make, strings.Join(names, ", "), s.Zip, s.DistanceRadius,
		s.PriceStart, s.PriceEnd, s.YearStart, s.YearEnd, s.MileageCeiling)
}

type searchJSON struct {
	Make       string       `json:"make"`
	Models     []ModelEntry `json:"models"`
	YearStart  Optional     `json:"year_start"`
	YearEnd    Optional     `json:"year_end"`
	Mileage    Optional     `json:"mileage"`
	Zip        string       `json:"zip"`
	Distance   int          `json:"distance"`
	PriceStart int          `json:"price_start"`
	PriceEnd   Optional     `json:"price_end"`
}

// MarshalJSON writes the persisted search shape; no lower price bound is 0
func (s Search) MarshalJSON() ([]byte, error) {
	return json.Marshal(searchJSON{
		Make:       s.Make,
		Models:     s.Models,
		YearStart:  s.YearStart,
		YearEnd:    s.YearEnd,
		Mileage:    s.MileageCeiling,
		Zip:        s.Zip,
		Distance:   s.DistanceRadius,
		PriceStart: s.PriceStart.OrElse(0),
		PriceEnd:   s.PriceEnd,
	})
}

// UnmarshalJSON reads the persisted search shape
func (s *Search) UnmarshalJSON(data []byte) error {
	raw := searchJSON{
		Mileage:  Some(DefaultMileageCeiling),
		Distance: DefaultDistance,
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	priceStart := None
	if raw.PriceStart > 0 {
		priceStart = Some(raw.PriceStart)
	}

	*s = Search{
		Make:           raw.Make,
		Models:         raw.Models,
		MileageCeiling: raw.Mileage,
		YearStart:      raw.YearStart,
		YearEnd:        raw.YearEnd,
		Zip:            raw.Zip,
		DistanceRadius: raw.Distance,
		PriceStart:     priceStart,
		PriceEnd:       raw.PriceEnd,
	}
	return nil
}
