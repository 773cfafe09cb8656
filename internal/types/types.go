package types

import "image"

// FrameTask represents a single frame sent to a worker for processing
type FrameTask struct {
	Index int
	Data  []byte
	// Infer is false for frames between polls; they reuse the last detections.
	Infer bool
}

// Detection matches the JSON structure coming back from the Python worker
type Detection struct {
	Box    []int              `json:"box"`      // [x, y, w, h]
	Scores map[string]float64 `json:"emotions"` // category -> confidence
}

// Rect converts the [x, y, w, h] box into an image.Rectangle.
// ok is false for boxes that are missing fields or have no area.
func (d Detection) Rect() (r image.Rectangle, ok bool) {
	if len(d.Box) < 4 {
		return image.Rectangle{}, false
	}
	x, y, w, h := d.Box[0], d.Box[1], d.Box[2], d.Box[3]
	if w <= 0 || h <= 0 || x < 0 || y < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}

// ErrorResult captures the error object returned by Python on failure
type ErrorResult struct {
	Error string `json:"error"`
}
