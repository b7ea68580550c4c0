package server

import "github.com/vargaseous/sec-mcptest/state"

type replaceResponse struct {
	Status string         `json:"status"`
	State  state.Document `json:"state"`
}

type filtersResponse struct {
	Status           string   `json:"status"`
	SelectedFClasses []string `json:"selected_fclasses"`
}

type mapResponse struct {
	Status string        `json:"status"`
	Map    state.MapView `json:"map"`
}

type resetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type fclassesResponse struct {
	FClasses []string `json:"fclasses"`
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}
