// Package pipewire talks to the graph registry that links plugin ports.
package pipewire

import (
	"context"
	"net/http"
	"strings"

	"pmxfactory/internal/services"
)

const (
	serviceName = "pipewire"
	linkByName  = "/v1/links/by-name"
)

// LinkRequest connects one output port of a node to one input port of
// another, addressing both nodes by name.
type LinkRequest struct {
	OutputNodeName string `json:"output_node_name"`
	OutputPortID   uint32 `json:"output_port_id"`
	InputNodeName  string `json:"input_node_name"`
	InputPortID    uint32 `json:"input_port_id"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the graph registry at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), httpClient: httpClient}
}

// CreateLinkByName issues a single port link.
func (c *Client) CreateLinkByName(ctx context.Context, link LinkRequest) error {
	return services.PostJSON(ctx, c.httpClient, serviceName, c.baseURL, linkByName, link, nil)
}
