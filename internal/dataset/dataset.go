// Package dataset reads the read-only GeoJSON file that defines the valid
// facility classes and the features the renderer draws for them.
package dataset

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/vargaseous/sec-mcptest/errors"
)

// Feature is a single facility reduced to what consumers display.
type Feature struct {
	Name  string
	Class string
	// Centroid of the geometry; X is longitude, Y is latitude.
	Centroid orb.Point
}

// Dataset is a GeoJSON FeatureCollection on disk. The file is re-read on
// every call so edits show up without a restart.
type Dataset struct {
	path       string
	classField string
}

// New creates a Dataset reading classes from the classField property.
func New(path, classField string) *Dataset {
	return &Dataset{path: path, classField: classField}
}

// Path returns the dataset file path.
func (d *Dataset) Path() string {
	return d.path
}

// Classes returns every distinct class value, deduplicated, in the order
// first seen in the file.
func (d *Dataset) Classes() ([]string, error) {
	fc, err := d.load()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	classes := []string{}
	for _, f := range fc.Features {
		class, ok := f.Properties[d.classField].(string)
		if !ok {
			continue
		}
		if _, dup := seen[class]; dup {
			continue
		}
		seen[class] = struct{}{}
		classes = append(classes, class)
	}
	return classes, nil
}

// Visible returns the features whose class is in classes. An empty
// selection means no filter is applied and every classified feature is
// returned.
func (d *Dataset) Visible(classes []string) ([]Feature, error) {
	fc, err := d.load()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(classes))
	for _, c := range classes {
		wanted[c] = true
	}

	var features []Feature
	for _, f := range fc.Features {
		class, ok := f.Properties[d.classField].(string)
		if !ok || (len(wanted) > 0 && !wanted[class]) {
			continue
		}
		if f.Geometry == nil {
			continue
		}
		centroid, _ := planar.CentroidArea(f.Geometry)
		name, _ := f.Properties["name"].(string)
		features = append(features, Feature{Name: name, Class: class, Centroid: centroid})
	}
	return features, nil
}

// Center returns the mean of the centroids of the visible features as
// [latitude, longitude]. ok is false when nothing is visible.
func (d *Dataset) Center(classes []string) (center [2]float64, ok bool, err error) {
	features, err := d.Visible(classes)
	if err != nil || len(features) == 0 {
		return center, false, err
	}

	var lat, lng float64
	for _, f := range features {
		lat += f.Centroid.Lat()
		lng += f.Centroid.Lon()
	}
	n := float64(len(features))
	return [2]float64{lat / n, lng / n}, true, nil
}

func (d *Dataset) load() (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, errors.DataUnavailable(d.path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.DataUnavailable(d.path, err)
	}
	return fc, nil
}
