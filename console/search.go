package console

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sjsage522/carlistingworker/internal/listing"
)

var zipPattern = regexp.MustCompile(`^\d{5}$`)

var titleCaser = cases.Title(language.English)

// properName title-cases an all lowercase answer ("kia" becomes "Kia") and
// leaves anything else, such as "BMW", alone.
func properName(s string) string {
	s = strings.TrimSpace(s)
	if s == strings.ToLower(s) {
		return titleCaser.String(s)
	}
	return s
}

// NewSearch asks for every field of a new search
func (c *Console) NewSearch() (listing.Search, error) {
	return c.EditSearch(listing.NewSearch("", ""))
}

// EditSearch asks for every field of s, showing the current value in
// brackets. An empty answer keeps it. The result is validated and the
// questions repeat until it passes.
func (c *Console) EditSearch(s listing.Search) (listing.Search, error) {
	for {
		next, err := c.askSearch(s)
		if err != nil {
			return listing.Search{}, err
		}
		if err := next.Validate(); err != nil {
			c.Warning("%v", err)
			s = next
			continue
		}
		return next, nil
	}
}

func (c *Console) askSearch(s listing.Search) (listing.Search, error) {
	var err error

	if s.Make, err = c.text("Make", s.Make, nil); err != nil {
		return s, err
	}
	s.Make = properName(s.Make)

	if s.Models, err = c.models(s.Models); err != nil {
		return s, err
	}
	if s.Zip, err = c.text("Zip code", s.Zip, zipPattern.MatchString); err != nil {
		return s, err
	}
	if s.DistanceRadius, err = c.number("Distance (mi)", s.DistanceRadius); err != nil {
		return s, err
	}
	if s.PriceStart, err = c.optional("Minimum price", s.PriceStart); err != nil {
		return s, err
	}
	if s.PriceEnd, err = c.optional("Maximum price", s.PriceEnd); err != nil {
		return s, err
	}
	if s.YearStart, err = c.optional("Oldest year", s.YearStart); err != nil {
		return s, err
	}
	if s.YearEnd, err = c.optional("Newest year", s.YearEnd); err != nil {
		return s, err
	}
	if s.MileageCeiling, err = c.optional("Maximum mileage", s.MileageCeiling); err != nil {
		return s, err
	}
	return s, nil
}

// models asks for a comma separated list of model names. Names already
// present keep their entry; new ones may get their own bounds.
func (c *Console) models(current []listing.ModelEntry) ([]listing.ModelEntry, error) {
	names := make([]string, len(current))
	for i, e := range current {
		names[i] = e.Name()
	}

	answer, err := c.text("Models (comma separated)", strings.Join(names, ", "), nil)
	if err != nil {
		return nil, err
	}
	if answer == strings.Join(names, ", ") {
		return current, nil
	}

	existing := make(map[string]listing.ModelEntry, len(current))
	for _, e := range current {
		existing[strings.ToLower(e.Name())] = e
	}

	var entries []listing.ModelEntry
	for _, name := range strings.Split(answer, ",") {
		name = properName(name)
		if name == "" {
			continue
		}
		if e, ok := existing[strings.ToLower(name)]; ok {
			entries = append(entries, e)
			continue
		}

		own, err := c.YesNo(fmt.Sprintf("Give %s its own mileage and year bounds? ", name))
		if err != nil {
			return nil, err
		}
		if !own {
			entries = append(entries, listing.Named(name))
			continue
		}

		m := listing.NewModel(name).WithYears(listing.None, listing.None)
		if m.MileageCeiling, err = c.optional(name+" maximum mileage", m.MileageCeiling); err != nil {
			return nil, err
		}
		if m.YearStart, err = c.optional(name+" oldest year", m.YearStart); err != nil {
			return nil, err
		}
		if m.YearEnd, err = c.optional(name+" newest year", m.YearEnd); err != nil {
			return nil, err
		}
		entries = append(entries, listing.Constrained(m))
	}
	return entries, nil
}

func (c *Console) text(label, current string, valid func(string) bool) (string, error) {
	answer, err := c.Prompt(fmt.Sprintf("%s [%s]: ", label, current), func(s string) bool {
		if s == "" {
			return current != ""
		}
		return valid == nil || valid(s)
	})
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

func (c *Console) number(label string, current int) (int, error) {
	answer, err := c.Prompt(fmt.Sprintf("%s [%d]: ", label, current), func(s string) bool {
		if s == "" {
			return true
		}
		n, err := strconv.Atoi(s)
		return err == nil && n > 0
	})
	if err != nil || answer == "" {
		return current, err
	}
	return strconv.Atoi(answer)
}

// optional accepts a number such as "8000" or "$8,000", "any" to clear the
// bound, or nothing to keep it.
func (c *Console) optional(label string, current listing.Optional) (listing.Optional, error) {
	shown := "any"
	if v, ok := current.Get(); ok {
		shown = strconv.Itoa(v)
	}

	answer, err := c.Prompt(fmt.Sprintf("%s [%s]: ", label, shown), func(s string) bool {
		if s == "" || strings.EqualFold(s, "any") {
			return true
		}
		_, err := listing.ParseAmount(s)
		return err == nil
	})
	if err != nil {
		return current, err
	}

	switch {
	case answer == "":
		return current, nil
	case strings.EqualFold(answer, "any"):
		return listing.None, nil
	default:
		return listing.ParseAmount(answer)
	}
}
