package listing

import (
	"encoding/json"
	"strconv"
)

// Optional is an integer that may be absent: an undisclosed price, an
// unconstrained year bound. It is encoded as -1 on the wire when absent.
type Optional struct {
	value int
	set   bool
}

// None is the absent value
var None = Optional{}

// Some returns a present value
func Some(v int) Optional {
	return Optional{value: v, set: true}
}

// FromSentinel maps the persisted encoding back: any negative number is absent
func FromSentinel(v int) Optional {
	if v < 0 {
		return None
	}
	return Some(v)
}

// Get returns the value and whether it is present
func (o Optional) Get() (int, bool) {
	return o.value, o.set
}

// IsSet reports whether a value is present
func (o Optional) IsSet() bool {
	return o.set
}

// OrElse returns the value, or def when absent
func (o Optional) OrElse(def int) int {
	if !o.set {
		return def
	}
	return o.value
}

// Sentinel returns the persisted encoding, -1 when absent
func (o Optional) Sentinel() int {
	return o.OrElse(-1)
}

// String renders the value, or "N/A" when absent
func (o Optional) String() string {
	if !o.set {
		return "N/A"
	}
	return strconv.Itoa(o.value)
}

// MarshalJSON implements json.Marshaler
func (o Optional) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Sentinel())
}

// UnmarshalJSON implements json.Unmarshaler
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = FromSentinel(v)
	return nil
}
