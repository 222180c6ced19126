package virtualsensor

import (
	"context"
	"sync"
	"time"

	"github.com/c360/virtualsensor/fingerprint"
	"github.com/c360/virtualsensor/swe"
)

// OutputEventType tells a subscriber what an OutputEvent carries.
type OutputEventType string

// Output event types
const (
	OutputRecord  OutputEventType = "record"
	OutputFeature OutputEventType = "feature_of_interest"
)

// OutputEvent is delivered to subscribers of an output channel.
type OutputEvent struct {
	Type      OutputEventType
	Output    string
	Timestamp time.Time
	Record    swe.DataBlock
	Feature   *swe.FeatureOfInterest
}

// Handler receives events from an output channel.
type Handler func(OutputEvent)

// Output is a named, schema-typed publication point.
type Output struct {
	name        string
	schema      *swe.Component
	encoding    *swe.Encoding
	fingerprint fingerprint.Fingerprint

	mu         sync.RWMutex
	subs       map[uint64]Handler
	nextSub    uint64
	latest     swe.DataBlock
	latestTime time.Time
	count      uint64
	foi        *swe.FeatureOfInterest
}

func newOutput(name string, schema *swe.Component, enc *swe.Encoding) *Output {
	elem := schema.Clone()
	elem.Name = name
	return &Output{
		name:        name,
		schema:      elem,
		encoding:    enc.Clone(),
		fingerprint: fingerprint.Of(schema, nil),
		subs:        make(map[uint64]Handler),
	}
}

// Name returns the output name.
func (o *Output) Name() string {
	return o.name
}

// Schema returns a copy of the record structure; its root carries the
// output name.
func (o *Output) Schema() *swe.Component {
	return o.schema.Clone()
}

// Encoding returns a copy of the encoding, or nil when unspecified.
func (o *Output) Encoding() *swe.Encoding {
	return o.encoding.Clone()
}

// Fingerprint returns the channel fingerprint (schema only).
func (o *Output) Fingerprint() fingerprint.Fingerprint {
	return o.fingerprint
}

// Subscribe registers h and returns a function that removes it.
func (o *Output) Subscribe(h Handler) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = h
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// LatestRecord returns the most recent record and when it was published.
func (o *Output) LatestRecord() (swe.DataBlock, time.Time) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest.Clone(), o.latestTime
}

// RecordCount returns how many records were published on the output.
func (o *Output) RecordCount() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.count
}

// CurrentFeatureOfInterest returns the feature most recently associated
// with the output.
func (o *Output) CurrentFeatureOfInterest() *swe.FeatureOfInterest {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.foi
}

func (o *Output) handlers() []Handler {
	hs := make([]Handler, 0, len(o.subs))
	for _, h := range o.subs {
		hs = append(hs, h)
	}
	return hs
}

// publishRecord stores block as the latest record and fans it out.
func (o *Output) publishRecord(ctx context.Context, block swe.DataBlock, at time.Time) {
	o.mu.Lock()
	o.latest = block.Clone()
	o.latestTime = at
	o.count++
	hs := o.handlers()
	o.mu.Unlock()

	ev := OutputEvent{Type: OutputRecord, Output: o.name, Timestamp: at, Record: block}
	for _, h := range hs {
		if ctx.Err() != nil {
			return
		}
		h(ev)
	}
}

// publishFeature replaces the current feature of interest and fans it out.
func (o *Output) publishFeature(foi *swe.FeatureOfInterest, at time.Time) {
	o.mu.Lock()
	o.foi = foi
	hs := o.handlers()
	o.mu.Unlock()

	ev := OutputEvent{Type: OutputFeature, Output: o.name, Timestamp: at, Feature: foi}
	for _, h := range hs {
		h(ev)
	}
}
