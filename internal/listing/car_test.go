package listing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soul(url string) Car {
	return Car{
		Make:    "Kia",
		Model:   "Soul",
		Year:    2012,
		Mileage: Some(84000),
		Price:   Some(7500),
		URL:     url,
	}
}

func TestEqualIgnoresURL(t *testing.T) {
	a := soul("https://www.cargurus.com/Cars/inventorylisting#listing=4")
	b := soul("https://www.cargurus.com/Cars/inventorylisting#listing=9")
	c := soul("")

	assert.True(t, a.Equal(b))
	assert.True(t, Equal(a, c))
	assert.Equal(t, a.Identity(), b.Identity())
	assert.Equal(t, a.Identity().Key(), c.Identity().Key())
	assert.Equal(t, a.Identity().Hash(), b.Identity().Hash())
}

func TestEqualChecksEveryIdentityField(t *testing.T) {
	base := soul("u")

	changes := map[string]func(*Car){
		"make":    func(c *Car) { c.Make = "Hyundai" },
		"model":   func(c *Car) { c.Model = "Rio" },
		"year":    func(c *Car) { c.Year = 2013 },
		"mileage": func(c *Car) { c.Mileage = Some(84001) },
		"price":   func(c *Car) { c.Price = None },
	}

	for name, change := range changes {
		other := base
		change(&other)
		assert.False(t, base.Equal(other), name)

		// changing the URL on top never flips the result
		other.URL = "elsewhere"
		assert.False(t, base.Equal(other), name)
	}
}

func TestUnknownDiffersFromZero(t *testing.T) {
	a := soul("")
	a.Price = None
	b := soul("")
	b.Price = Some(0)

	assert.False(t, a.Equal(b))
}

func TestCarString(t *testing.T) {
	assert.Equal(t, "2012 Kia Soul, $7,500, 84,000 miles", soul("").String())

	unknown := soul("")
	unknown.Price = None
	unknown.Mileage = None
	assert.Equal(t, "2012 Kia Soul, N/A, N/A miles", unknown.String())
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "0", groupThousands(0))
	assert.Equal(t, "999", groupThousands(999))
	assert.Equal(t, "1,000", groupThousands(1000))
	assert.Equal(t, "1,234,567", groupThousands(1234567))
	assert.Equal(t, "-12,000", groupThousands(-12000))
}

func TestCarJSONUsesSentinel(t *testing.T) {
	car := soul("https://example.com/1")
	car.Price = None

	data, err := json.Marshal(car)
	require.NoError(t, err)
	assert.JSONEq(t, `{"make":"Kia","model":"Soul","year":2012,"mileage":84000,"price":-1,"url":"https://example.com/1"}`, string(data))

	var back Car
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, car.Equal(back))
	assert.False(t, back.Price.IsSet())
}

func TestOptional(t *testing.T) {
	v, ok := Some(5).Get()
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	_, ok = None.Get()
	assert.False(t, ok)

	assert.Equal(t, 9, None.OrElse(9))
	assert.Equal(t, -1, None.Sentinel())
	assert.Equal(t, None, FromSentinel(-1))
	assert.Equal(t, Some(0), FromSentinel(0))
	assert.Equal(t, "N/A", None.String())

	var o Optional
	require.NoError(t, json.Unmarshal([]byte("null"), &o))
	assert.False(t, o.IsSet())
}
