// Package mapping implements the layer pipeline: an ordered list of
// transforms folded over the optional per-tick Input. "Layer" is a closed
// capability set (name/apply); new variants are not meant to be plugged in
// dynamically.
package mapping

import "github.com/sticks-io/gcfeeder/internal/gcinput"

// Layer is one transform stage in the pipeline.
type Layer interface {
	Name() string
	Apply(in gcinput.Message) gcinput.Message
}

// Pipeline folds a sequence of layers over one tick's message.
type Pipeline struct {
	layers []Layer
}

// NewPipeline constructs a pipeline from layers, applied in order.
func NewPipeline(layers ...Layer) *Pipeline {
	return &Pipeline{layers: layers}
}

// Apply folds every layer over in in order, returning the final message.
func (p *Pipeline) Apply(in gcinput.Message) gcinput.Message {
	for _, l := range p.layers {
		in = l.Apply(in)
	}
	return in
}

// Layers returns the pipeline's stages in application order, for
// diagnostics/logging.
func (p *Pipeline) Layers() []Layer { return p.layers }
