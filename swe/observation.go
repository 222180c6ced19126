package swe

import "time"

// DataBlock holds the values of one record in schema leaf order.
type DataBlock []any

// Clone returns a shallow copy of the block values.
func (b DataBlock) Clone() DataBlock {
	if b == nil {
		return nil
	}
	return append(DataBlock(nil), b...)
}

// FeatureOfInterest is the real-world entity an observation is about.
type FeatureOfInterest struct {
	ID          string         `json:"id" yaml:"id" cbor:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty" cbor:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" cbor:"description,omitempty"`
	Geometry    map[string]any `json:"geometry,omitempty" yaml:"geometry,omitempty" cbor:"geometry,omitempty"`
}

// Observation is a result template submitted alongside a schema. Only the
// feature of interest is used by the virtual sensor.
type Observation struct {
	FeatureOfInterest *FeatureOfInterest `json:"feature_of_interest,omitempty"`
	PhenomenonTime    time.Time          `json:"phenomenon_time,omitempty"`
	Result            DataBlock          `json:"result,omitempty"`
}

// TimePeriod is a validity interval. A zero End means open-ended.
type TimePeriod struct {
	Begin time.Time `json:"begin" yaml:"begin" cbor:"begin"`
	End   time.Time `json:"end,omitempty" yaml:"end,omitempty" cbor:"end,omitempty"`
}
