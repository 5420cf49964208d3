// Package display holds what the user currently sees (a status line and a
// feedback image) and forwards every change to the surfaces that render it.
package display

import "time"

// Image is the feedback image currently shown.
type Image struct {
	Name string `json:"name"`
	// URL is where a browser can fetch the image. Empty when the image has no file.
	URL string `json:"url,omitempty"`
}

// Surface renders the status line and the feedback image.
type Surface interface {
	SetStatus(text string)
	SetImage(img Image)
}

// Snapshot is the current display state.
type Snapshot struct {
	Status    string    `json:"status"`
	Image     *Image    `json:"image,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Multi forwards every update to each of its surfaces in order.
type Multi []Surface

// NewMulti builds a Multi, skipping nil surfaces.
func NewMulti(surfaces ...Surface) Multi {
	m := make(Multi, 0, len(surfaces))
	for _, s := range surfaces {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m Multi) SetStatus(text string) {
	for _, s := range m {
		s.SetStatus(text)
	}
}

func (m Multi) SetImage(img Image) {
	for _, s := range m {
		s.SetImage(img)
	}
}
