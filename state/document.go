// Package state owns the shared view-state document: its wire form, its
// validation and the service that reads, writes and announces it.
package state

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/schema"
)

// DefaultZoom is the zoom level of a document that does not set one.
const DefaultZoom = 12

// ChangedPayload is the body of every change event. Events carry no data;
// consumers re-read the document.
const ChangedPayload = "state_changed"

var (
	documentSchema  = schema.MustValidator(schema.StateDocument)
	mapUpdateSchema = schema.MustValidator(schema.MapUpdate)
	filtersSchema   = schema.MustValidator(schema.Filters)
)

// LatLng is a [latitude, longitude] pair.
type LatLng [2]float64

// Document is the single shared record of filter selection and map viewport.
type Document struct {
	SelectedFClasses []string `json:"selected_fclasses"`
	MapCenter        *LatLng  `json:"map_center"`
	ZoomLevel        *int     `json:"zoom_level"`
}

// MapView is the map-only part of a Document.
type MapView struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

// Default returns the document readers see when none is persisted.
func Default() Document {
	zoom := DefaultZoom
	return Document{SelectedFClasses: []string{}, ZoomLevel: &zoom}
}

// Zoom returns the zoom level, falling back to DefaultZoom.
func (d Document) Zoom() int {
	if d.ZoomLevel == nil {
		return DefaultZoom
	}
	return *d.ZoomLevel
}

// Validate checks the invariants the JSON schema cannot see on a typed
// document.
func (d Document) Validate() error {
	if d.MapCenter != nil {
		if err := d.MapCenter.validate("map_center"); err != nil {
			return err
		}
	}
	return nil
}

func (c LatLng) validate(field string) error {
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Validation(field, "coordinates must be finite numbers")
		}
	}
	return nil
}

// UnmarshalJSON accepts integral numbers such as 12.0 for zoom_level. An
// absent zoom_level leaves the current value; null clears it.
func (d *Document) UnmarshalJSON(raw []byte) error {
	type plain Document
	aux := struct {
		*plain
		ZoomLevel json.RawMessage `json:"zoom_level"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	if len(aux.ZoomLevel) == 0 {
		return nil
	}
	if string(aux.ZoomLevel) == "null" {
		d.ZoomLevel = nil
		return nil
	}
	zoom, err := decodeZoom("zoom_level", aux.ZoomLevel)
	if err != nil {
		return err
	}
	d.ZoomLevel = &zoom
	return nil
}

// UnmarshalJSON accepts integral numbers such as 14.0 for zoom.
func (v *MapView) UnmarshalJSON(raw []byte) error {
	type plain MapView
	aux := struct {
		*plain
		Zoom json.RawMessage `json:"zoom"`
	}{plain: (*plain)(v)}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	if len(aux.Zoom) == 0 {
		return nil
	}
	zoom, err := decodeZoom("zoom", aux.Zoom)
	if err != nil {
		return err
	}
	v.Zoom = zoom
	return nil
}

func decodeZoom(field string, raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errors.Validation(field, "must be a whole number")
	}
	return int(f), nil
}

func (d Document) normalized() Document {
	if d.SelectedFClasses == nil {
		d.SelectedFClasses = []string{}
	}
	return d
}

// DecodeDocument validates raw against the document schema and decodes it.
// An absent zoom_level decodes to DefaultZoom; an explicit null stays nil.
func DecodeDocument(raw []byte) (Document, error) {
	if err := documentSchema.ValidateJSON(raw); err != nil {
		return Document{}, err
	}
	doc, err := unmarshalDocument(raw)
	if err != nil {
		if errors.Is(err, errors.ErrCodeValidation) {
			return Document{}, err
		}
		return Document{}, errors.Validation("body", err.Error())
	}
	return doc, doc.Validate()
}

// DecodeMapView validates and decodes a {center, zoom} body.
func DecodeMapView(raw []byte) (MapView, error) {
	if err := mapUpdateSchema.ValidateJSON(raw); err != nil {
		return MapView{}, err
	}
	var view MapView
	if err := json.Unmarshal(raw, &view); err != nil {
		if errors.Is(err, errors.ErrCodeValidation) {
			return MapView{}, err
		}
		return MapView{}, errors.Validation("body", err.Error())
	}
	return view, view.Center.validate("center")
}

// DecodeFilters validates and decodes a list of facility classes.
func DecodeFilters(raw []byte) ([]string, error) {
	if err := filtersSchema.ValidateJSON(raw); err != nil {
		return nil, err
	}
	classes := []string{}
	if err := json.Unmarshal(raw, &classes); err != nil {
		return nil, errors.Validation("body", err.Error())
	}
	return classes, nil
}

func unmarshalDocument(raw []byte) (Document, error) {
	doc := Default()
	if err := json.Unmarshal(raw, &doc); err != nil {
		if errors.Is(err, errors.ErrCodeValidation) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("decode state document: %w", err)
	}
	return doc.normalized(), nil
}
