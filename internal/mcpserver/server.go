// Package mcpserver exposes the view state to automation agents as Model
// Context Protocol tools. Every tool goes through a client.Client, so the
// adapter behaves exactly like any other API consumer.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/vargaseous/sec-mcptest/pkg/client"
	"github.com/vargaseous/sec-mcptest/version"
)

const (
	serverName = "viewsync"

	// StateResourceURI names the readable state resource.
	StateResourceURI = "viewsync://state"
)

// Server wraps the MCP server and the API client its tools call.
type Server struct {
	mcpServer *mcp.Server
	client    client.Client
	logger    *logrus.Entry
}

// New registers every tool and resource against c.
func New(c client.Client, logger *logrus.Entry) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version.GetInfo().Version}, nil)

	mcp.AddTool(mcpServer, getAppStateTool(), getAppStateHandler(c))
	mcp.AddTool(mcpServer, listFacilityClassesTool(), listFacilityClassesHandler(c))
	mcp.AddTool(mcpServer, setFacilityFiltersTool(), setFacilityFiltersHandler(c))
	mcp.AddTool(mcpServer, setMapViewTool(), setMapViewHandler(c))
	mcp.AddTool(mcpServer, resetAppTool(), resetAppHandler(c))
	mcp.AddTool(mcpServer, checkHealthTool(), checkHealthHandler(c))

	mcpServer.AddResource(&mcp.Resource{
		Name:        "app_state",
		Title:       "Current View State",
		Description: "Selected facility classes and map view as JSON",
		MIMEType:    "application/json",
		URI:         StateResourceURI,
	}, stateResourceHandler(c))

	return &Server{mcpServer: mcpServer, client: c, logger: logger}
}

// Run serves over stdio until ctx is cancelled or the peer disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("MCP server starting")
	if err := s.mcpServer.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func stateResourceHandler(c client.Client) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		doc, err := c.GetState(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal state: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      StateResourceURI,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// ClientConfig renders a portable mcpServers entry that launches this
// binary's mcp command.
func ClientConfig(executable, workDir string, args []string) ([]byte, error) {
	config := map[string]interface{}{
		"mcpServers": map[string]interface{}{
			serverName: map[string]interface{}{
				"command": executable,
				"args":    append([]string{"mcp"}, args...),
				"cwd":     workDir,
			},
		},
	}
	return json.MarshalIndent(config, "", "  ")
}
