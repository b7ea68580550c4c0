package mcpserver

import (
	"context"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vargaseous/sec-mcptest/pkg/client"
	"github.com/vargaseous/sec-mcptest/state"
)

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// ClassesResult lists the valid facility classes.
type ClassesResult struct {
	FClasses []string `json:"fclasses" jsonschema:"facility class names found in the dataset"`
}

// SetFiltersInput selects the visible facility classes.
type SetFiltersInput struct {
	FClasses []string `json:"fclasses" jsonschema:"facility classes to show; an empty list shows everything"`
}

// SetFiltersResult reports the applied filter, or why it was rejected.
type SetFiltersResult struct {
	Status           string            `json:"status"`
	Message          string            `json:"message,omitempty"`
	SelectedFClasses []string          `json:"selected_fclasses,omitempty"`
	Invalid          []string          `json:"invalid,omitempty" jsonschema:"requested classes missing from the dataset"`
	Allowed          []string          `json:"allowed,omitempty" jsonschema:"every valid class, sorted"`
	Suggestions      map[string]string `json:"suggestions,omitempty" jsonschema:"closest valid class for each invalid one"`
}

// SetMapViewInput positions the map.
type SetMapViewInput struct {
	Latitude  float64 `json:"latitude" jsonschema:"map center latitude"`
	Longitude float64 `json:"longitude" jsonschema:"map center longitude"`
	Zoom      int     `json:"zoom" jsonschema:"map zoom level"`
}

// SetMapViewResult echoes the applied map view.
type SetMapViewResult struct {
	Status string        `json:"status"`
	Map    state.MapView `json:"map"`
}

// ResetResult confirms a reset.
type ResetResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResult mirrors the health endpoint.
type HealthResult struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func getAppStateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_app_state",
		Description: "Get the current view state including selected filters and map view",
	}
}

func listFacilityClassesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_facility_classes",
		Description: "List all available facility class names (fclasses) from the dataset",
	}
}

func setFacilityFiltersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_facility_filters",
		Description: "Set which facility classes are visible on the map. Rejects unknown values",
	}
}

func setMapViewTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_map_view",
		Description: "Set the map center location (lat/lon) and zoom level",
	}
}

func resetAppTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reset_app",
		Description: "Reset the view state to its defaults",
	}
}

func checkHealthTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "check_health",
		Description: "Check whether the State API and its backing store are healthy",
	}
}

func getAppStateHandler(c client.Client) mcp.ToolHandlerFor[EmptyInput, state.Document] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, state.Document, error) {
		doc, err := c.GetState(ctx)
		return nil, doc, err
	}
}

func listFacilityClassesHandler(c client.Client) mcp.ToolHandlerFor[EmptyInput, ClassesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, ClassesResult, error) {
		classes, err := c.ListFacilityClasses(ctx)
		if err != nil {
			return nil, ClassesResult{}, err
		}
		return nil, ClassesResult{FClasses: classes}, nil
	}
}

// setFacilityFiltersHandler checks every requested class against the
// dataset before anything is written.
func setFacilityFiltersHandler(c client.Client) mcp.ToolHandlerFor[SetFiltersInput, SetFiltersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetFiltersInput) (*mcp.CallToolResult, SetFiltersResult, error) {
		known, err := c.ListFacilityClasses(ctx)
		if err != nil {
			return nil, SetFiltersResult{}, err
		}

		if rejected := checkClasses(input.FClasses, known); rejected != nil {
			return nil, *rejected, nil
		}

		classes, err := c.SetFilters(ctx, input.FClasses)
		if err != nil {
			return nil, SetFiltersResult{}, err
		}
		return nil, SetFiltersResult{Status: "success", SelectedFClasses: classes}, nil
	}
}

func setMapViewHandler(c client.Client) mcp.ToolHandlerFor[SetMapViewInput, SetMapViewResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetMapViewInput) (*mcp.CallToolResult, SetMapViewResult, error) {
		view, err := c.SetMapView(ctx, state.MapView{
			Center: state.LatLng{input.Latitude, input.Longitude},
			Zoom:   input.Zoom,
		})
		if err != nil {
			return nil, SetMapViewResult{}, err
		}
		return nil, SetMapViewResult{Status: "success", Map: view}, nil
	}
}

func resetAppHandler(c client.Client) mcp.ToolHandlerFor[EmptyInput, ResetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, ResetResult, error) {
		if err := c.ResetState(ctx); err != nil {
			return nil, ResetResult{}, err
		}
		return nil, ResetResult{Status: "success", Message: "State reset to defaults"}, nil
	}
}

func checkHealthHandler(c client.Client) mcp.ToolHandlerFor[EmptyInput, HealthResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, HealthResult, error) {
		h, err := c.Health(ctx)
		if err != nil {
			return nil, HealthResult{}, err
		}
		return nil, HealthResult{Status: h.Status, Store: h.Store}, nil
	}
}

// checkClasses returns a rejection when any requested class is unknown.
func checkClasses(requested, known []string) *SetFiltersResult {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}

	var invalid []string
	for _, r := range requested {
		if !allowed[r] {
			invalid = append(invalid, r)
		}
	}
	if len(invalid) == 0 {
		return nil
	}

	sorted := append([]string(nil), known...)
	sort.Strings(sorted)

	suggestions := make(map[string]string)
	for _, bad := range invalid {
		if s, ok := closest(bad, sorted); ok {
			suggestions[bad] = s
		}
	}

	return &SetFiltersResult{
		Status:      "error",
		Message:     "Some fclasses are not recognized",
		Invalid:     invalid,
		Allowed:     sorted,
		Suggestions: suggestions,
	}
}

// closest picks the candidate with the smallest edit distance, accepting
// it only when fewer than half of the characters differ.
func closest(word string, candidates []string) (string, bool) {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(word, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist*2 >= max(len(word), len(best)) {
		return "", false
	}
	return best, true
}
