package service

import (
	"fmt"
	"slices"
)

// FaceCaptions are used when a face was detected.
var FaceCaptions = []string{
	"When you open the front camera by accident",
	"That one friend who says 'trust me'",
	"I was today years old when I realized...",
	"POV: you said you’re 'fine'",
	"When you accidentally hit 'reply all'",
	"That moment you hear someone say your name",
	"Me pretending to listen but actually daydreaming",
	"When you realize tomorrow is Monday",
	"Trying to act normal after sending a risky text",
	"When the teacher says 'this will be on the test'",
}

// ObjectCaptions are used for everything else.
var ObjectCaptions = []string{
	"Me: I'll fix it later. Also me:",
	"When you finally touch grass",
	"Expectation vs. reality",
	"This is fine.",
	"When you try to cook something new",
	"Current mood: buffering",
	"When you find out it’s not all you can eat",
	"How it started vs. how it’s going",
	"When your code runs without errors",
	"Me after one gym session thinking I’m fit now",
}

// CaptionPool holds the two caption lists, keyed by whether a face was seen.
type CaptionPool struct {
	face   []string
	object []string
}

// NewCaptionPool copies the given lists. Both must be non-empty.
func NewCaptionPool(face, object []string) (*CaptionPool, error) {
	if len(face) == 0 {
		return nil, fmt.Errorf("face caption pool is empty")
	}
	if len(object) == 0 {
		return nil, fmt.Errorf("object caption pool is empty")
	}
	return &CaptionPool{
		face:   append([]string(nil), face...),
		object: append([]string(nil), object...),
	}, nil
}

// DefaultCaptionPool returns the built-in captions.
func DefaultCaptionPool() *CaptionPool {
	p, _ := NewCaptionPool(FaceCaptions, ObjectCaptions)
	return p
}

// CaptionPoolFromConfig uses the configured lists, falling back to the
// built-in list for any pool left empty.
func CaptionPoolFromConfig(face, object []string) *CaptionPool {
	if len(face) == 0 {
		face = FaceCaptions
	}
	if len(object) == 0 {
		object = ObjectCaptions
	}
	p, _ := NewCaptionPool(face, object)
	return p
}

func (p *CaptionPool) list(face bool) []string {
	if face {
		return p.face
	}
	return p.object
}

// Pick returns a caption from the pool matching face.
func (p *CaptionPool) Pick(face bool, pick Picker) string {
	list := p.list(face)
	return list[pick.IntN(len(list))]
}

// Contains reports whether caption belongs to the pool matching face.
func (p *CaptionPool) Contains(face bool, caption string) bool {
	return slices.Contains(p.list(face), caption)
}
