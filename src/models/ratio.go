package models

// MRatio is a normalized position that may be undefined.
// Value is nil when Valid is false, so a genuine 0 never reads as "missing".
type MRatio struct {
	Valid bool     `json:"valid"`
	Value *float64 `json:"value"`
}

// NewRatio builds an MRatio from a (value, ok) pair.
func NewRatio(value float64, ok bool) MRatio {
	if !ok {
		return MRatio{}
	}
	v := value
	return MRatio{Valid: true, Value: &v}
}

// Float returns the ratio and whether it is defined.
func (r MRatio) Float() (float64, bool) {
	if !r.Valid || r.Value == nil {
		return 0, false
	}
	return *r.Value, true
}
