// Package registry talks to the topology metadata registry. Channel strip ids
// are assigned by the factory; output stage ids are assigned by the registry.
package registry

import (
	"context"
	"net/http"
	"strings"

	"pmxfactory/internal/services"
	"pmxfactory/internal/topology"
)

const (
	serviceName       = "registry"
	channelStripsPath = "/v1/channel-strips"
	outputStagesPath  = "/v1/output-stages"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the registry at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), httpClient: httpClient}
}

type channelStripRecord struct {
	ID                 uint32  `json:"id"`
	Name               string  `json:"name"`
	ChannelType        string  `json:"channel_type"`
	CrossFaderPluginID *uint32 `json:"cross_fader_plugin_id,omitempty"`
	SaturatorPluginID  uint32  `json:"saturator_plugin_id"`
	CompressorPluginID uint32  `json:"compressor_plugin_id"`
	EqualizerPluginID  uint32  `json:"equalizer_plugin_id"`
	GainPluginID       uint32  `json:"gain_plugin_id"`
}

// RegisterChannelStrip records a fully wired strip.
func (c *Client) RegisterChannelStrip(ctx context.Context, strip topology.ChannelStrip) error {
	record := channelStripRecord{
		ID:                 strip.ID,
		Name:               strip.Name,
		ChannelType:        strip.Kind.String(),
		CrossFaderPluginID: strip.CrossFaderID(),
		SaturatorPluginID:  strip.Plugins.Saturator.ID,
		CompressorPluginID: strip.Plugins.Compressor.ID,
		EqualizerPluginID:  strip.Plugins.Equalizer.ID,
		GainPluginID:       strip.Plugins.Gain.ID,
	}
	return services.PostJSON(ctx, c.httpClient, serviceName, c.baseURL, channelStripsPath, record, nil)
}

type outputStageRequest struct {
	Name                string `json:"name"`
	LeftChannelStripID  uint32 `json:"left_channel_strip_id"`
	RightChannelStripID uint32 `json:"right_channel_strip_id"`
	CrossFaderPluginID  uint32 `json:"cross_fader_plugin_id"`
}

type outputStageResponse struct {
	ID *uint32 `json:"id"`
}

// RegisterOutputStage records a wired stage and returns the id the registry
// assigned to it.
func (c *Client) RegisterOutputStage(ctx context.Context, name string, leftID, rightID, crossFaderID uint32) (uint32, error) {
	req := outputStageRequest{
		Name:                name,
		LeftChannelStripID:  leftID,
		RightChannelStripID: rightID,
		CrossFaderPluginID:  crossFaderID,
	}
	var resp outputStageResponse
	if err := services.PostJSON(ctx, c.httpClient, serviceName, c.baseURL, outputStagesPath, req, &resp); err != nil {
		return 0, err
	}
	if resp.ID == nil {
		return 0, services.Wrap(services.ErrProtocol, serviceName, "register output stage", "response carries no id", nil)
	}
	return *resp.ID, nil
}
