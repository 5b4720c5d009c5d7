// Package modhost talks to the plugin-hosting proxy that instantiates audio
// effect units on behalf of the factory.
package modhost

import (
	"context"
	"net/http"
	"strings"

	"pmxfactory/internal/services"
	"pmxfactory/internal/topology"
)

const (
	serviceName        = "modhost"
	pluginInstancePath = "/v1/plugin-instances"
)

// Client is safe for concurrent use; it holds no per-call state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the proxy at baseURL. A nil httpClient falls back
// to http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), httpClient: httpClient}
}

type createRequest struct {
	PluginType string `json:"plugin_type"`
	PluginURI  string `json:"plugin_uri"`
}

type createResponse struct {
	Plugin *topology.PluginInstance `json:"plugin"`
}

// CreatePluginInstance asks the host to instantiate the plugin at uri.
func (c *Client) CreatePluginInstance(ctx context.Context, pluginType, uri string) (topology.PluginInstance, error) {
	var resp createResponse
	req := createRequest{PluginType: pluginType, PluginURI: uri}
	if err := services.PostJSON(ctx, c.httpClient, serviceName, c.baseURL, pluginInstancePath, req, &resp); err != nil {
		return topology.PluginInstance{}, err
	}
	if resp.Plugin == nil {
		return topology.PluginInstance{}, services.Wrap(services.ErrProtocol, serviceName, "create plugin instance", "response carries no plugin", nil)
	}
	if strings.TrimSpace(resp.Plugin.Name) == "" {
		return topology.PluginInstance{}, services.Wrap(services.ErrProtocol, serviceName, "create plugin instance", "plugin has no name", nil)
	}
	plugin := *resp.Plugin
	if plugin.URI == "" {
		plugin.URI = uri
	}
	return plugin, nil
}
