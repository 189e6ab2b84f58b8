package listing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sjsage522/carlistingworker/pkg/errors"
)

// RawListing holds the text scraped for one listing row. Sources fill in what
// they have; Make, Model and Year may be left empty when only a title exists.
type RawListing struct {
	Source  string
	Title   string
	Make    string
	Model   string
	Year    string
	Mileage string
	Price   string
	URL     string
}

// unavailable phrases sites print instead of a number
var unavailable = map[string]struct{}{
	"":                {},
	"n/a":             {},
	"na":              {},
	"--":              {},
	"-":               {},
	"no price listed": {},
	"not priced":      {},
	"call for price":  {},
	"contact seller":  {},
}

var unitSuffixes = []string{"miles", "mile", "mi.", "mi"}

// ParseAmount normalizes a scraped price or mileage: currency symbols,
// thousands separators and a trailing unit are stripped, and any
// "not disclosed" phrase becomes None.
func ParseAmount(raw string) (Optional, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := unavailable[text]; ok {
		return None, nil
	}

	text = strings.NewReplacer("$", "", ",", "").Replace(text)
	for _, suffix := range unitSuffixes {
		if strings.HasSuffix(text, suffix) {
			text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
			break
		}
	}
	text = strings.Join(strings.Fields(text), "")

	value, err := strconv.Atoi(text)
	if err != nil {
		return None, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if value < 0 {
		return None, fmt.Errorf("parse amount %q: negative value", raw)
	}
	return Some(value), nil
}

// ParsePrice parses a scraped price such as "$12,345" or "No Price Listed"
func ParsePrice(raw string) (Optional, error) {
	return ParseAmount(raw)
}

// ParseMileage parses a scraped mileage such as "84,000 mi." or "N/A"
func ParseMileage(raw string) (Optional, error) {
	return ParseAmount(raw)
}

var titlePattern = regexp.MustCompile(`^\s*((?:19|20)\d{2})\s+(\S+)\s+(\S+)`)

// ParseTitle splits "2012 Kia Soul +" into year, make and model
func ParseTitle(title string) (int, string, string, error) {
	m := titlePattern.FindStringSubmatch(title)
	if m == nil {
		return 0, "", "", fmt.Errorf("title %q does not start with year, make and model", title)
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", "", fmt.Errorf("title %q: %w", title, err)
	}
	return year, m[2], m[3], nil
}

// ParseListing turns raw scraped fields into a Car. Explicit make, model and
// year fields win over what the title says.
func ParseListing(raw RawListing) (Car, error) {
	var (
		year           int
		carMake, model string
	)

	if raw.Title != "" {
		y, mk, md, err := ParseTitle(raw.Title)
		if err != nil && (raw.Make == "" || raw.Model == "" || raw.Year == "") {
			return Car{}, errors.NewParsing(raw.Source, "listing title", err)
		}
		year, carMake, model = y, mk, md
	}

	if raw.Make != "" {
		carMake = strings.TrimSpace(raw.Make)
	}
	if raw.Model != "" {
		model = strings.TrimSpace(raw.Model)
	}
	if raw.Year != "" {
		y, err := strconv.Atoi(strings.TrimSpace(raw.Year))
		if err != nil {
			return Car{}, errors.NewParsing(raw.Source, "listing year", err)
		}
		year = y
	}

	if carMake == "" || model == "" || year == 0 {
		return Car{}, errors.NewParsing(raw.Source, fmt.Sprintf("incomplete listing %q", raw.Title), nil)
	}

	mileage, err := ParseMileage(raw.Mileage)
	if err != nil {
		return Car{}, errors.NewParsing(raw.Source, "listing mileage", err)
	}
	price, err := ParsePrice(raw.Price)
	if err != nil {
		return Car{}, errors.NewParsing(raw.Source, "listing price", err)
	}

	return Car{
		Make:    carMake,
		Model:   model,
		Year:    year,
		Mileage: mileage,
		Price:   price,
		URL:     strings.TrimSpace(raw.URL),
	}, nil
}
