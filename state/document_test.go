package state

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/errors"
)

func TestDefault(t *testing.T) {
	doc := Default()
	assert.Equal(t, []string{}, doc.SelectedFClasses)
	assert.Nil(t, doc.MapCenter)
	assert.Equal(t, 12, doc.Zoom())

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selected_fclasses":[],"map_center":null,"zoom_level":12}`, string(raw))
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"selected_fclasses":["clinic"],"map_center":[1.35,103.8],"zoom_level":14}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"clinic"}, doc.SelectedFClasses)
	require.NotNil(t, doc.MapCenter)
	assert.Equal(t, LatLng{1.35, 103.8}, *doc.MapCenter)
	assert.Equal(t, 14, doc.Zoom())

	doc, err = DecodeDocument([]byte(`{"selected_fclasses":[]}`))
	require.NoError(t, err)
	require.NotNil(t, doc.ZoomLevel, "absent zoom defaults")
	assert.Equal(t, 12, *doc.ZoomLevel)

	doc, err = DecodeDocument([]byte(`{"selected_fclasses":[],"zoom_level":null}`))
	require.NoError(t, err)
	assert.Nil(t, doc.ZoomLevel, "explicit null is kept")
	assert.Equal(t, 12, doc.Zoom())
}

func TestDecodeDocumentRejects(t *testing.T) {
	for _, raw := range []string{
		`{"selected_fclasses":"not-a-list"}`,
		`{"selected_fclasses":[],"map_center":[1.35]}`,
		`{"map_center":[1.35,103.8]}`,
		`not json`,
	} {
		_, err := DecodeDocument([]byte(raw))
		assert.True(t, errors.Is(err, errors.ErrCodeValidation), "%s: got %v", raw, err)
	}
}

func TestDecodeMapView(t *testing.T) {
	view, err := DecodeMapView([]byte(`{"center":[1.35,103.8],"zoom":14}`))
	require.NoError(t, err)
	assert.Equal(t, MapView{Center: LatLng{1.35, 103.8}, Zoom: 14}, view)

	_, err = DecodeMapView([]byte(`{"center":[1.35,103.8]}`))
	assert.True(t, errors.Is(err, errors.ErrCodeValidation), "zoom is required")
}

func TestDecodeFilters(t *testing.T) {
	classes, err := DecodeFilters([]byte(`["clinic","hospital"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"clinic", "hospital"}, classes)

	classes, err = DecodeFilters([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, classes)

	_, err = DecodeFilters([]byte(`"clinic"`))
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func TestValidateRejectsNonFiniteCenter(t *testing.T) {
	doc := Default()
	doc.MapCenter = &LatLng{math.NaN(), 103.8}
	assert.True(t, errors.Is(doc.Validate(), errors.ErrCodeValidation))
}

func TestDecodeAcceptsIntegralZoom(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"selected_fclasses":[],"zoom_level":12.0}`))
	require.NoError(t, err)
	require.NotNil(t, doc.ZoomLevel)
	assert.Equal(t, 12, *doc.ZoomLevel)

	view, err := DecodeMapView([]byte(`{"center":[1.35,103.8],"zoom":14.0}`))
	require.NoError(t, err)
	assert.Equal(t, 14, view.Zoom)

	var stored Document
	require.NoError(t, json.Unmarshal([]byte(`{"selected_fclasses":["clinic"],"map_center":null,"zoom_level":9.0}`), &stored))
	assert.Equal(t, 9, stored.Zoom())
}

func TestDecodeRejectsFractionalZoomCleanly(t *testing.T) {
	var doc Document
	err := json.Unmarshal([]byte(`{"selected_fclasses":[],"zoom_level":12.5}`), &doc)
	require.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)
	assert.Contains(t, err.Error(), "zoom_level: must be a whole number")

	_, err = DecodeDocument([]byte(`{"selected_fclasses":[],"zoom_level":12.5}`))
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	assert.NotContains(t, err.Error(), "Go struct field")
}
