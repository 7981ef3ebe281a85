package obsws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"streamcast/internal/core/domain"
)

// streamServiceType used for custom RTMP ingestion endpoints.
const streamServiceCustom = "rtmp_custom"

// VersionInfo is the subset of GetVersion this service cares about.
type VersionInfo struct {
	ObsVersion          string `json:"obsVersion"`
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
}

// GetVersion queries encoder and protocol versions.
func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	data, err := c.request(ctx, "GetVersion", nil)
	if err != nil {
		return nil, err
	}
	var info VersionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	return &info, nil
}

// QueryOutputActive implements ports.EncoderControl.
func (c *Client) QueryOutputActive(ctx context.Context) (bool, error) {
	data, err := c.request(ctx, "GetStreamStatus", nil)
	if err != nil {
		return false, err
	}
	var status struct {
		OutputActive bool `json:"outputActive"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return false, fmt.Errorf("decode stream status: %w", err)
	}
	return status.OutputActive, nil
}

// StartOutput implements ports.EncoderControl. An already-running output is
// not an error: the desired state holds either way.
func (c *Client) StartOutput(ctx context.Context) error {
	_, err := c.request(ctx, "StartStream", nil)
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Code == statusOutputRunning {
		c.logger.Infow("stream output already running")
		return nil
	}
	return err
}

// StopOutput implements ports.EncoderControl. Symmetric to StartOutput: an
// already-stopped output satisfies the request.
func (c *Client) StopOutput(ctx context.Context) error {
	_, err := c.request(ctx, "StopStream", nil)
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Code == statusOutputNotRunning {
		c.logger.Infow("stream output already stopped")
		return nil
	}
	return err
}

type streamServiceSettings struct {
	Server string `json:"server"`
	Key    string `json:"key"`
}

// GetOutputDestination implements ports.EncoderControl.
func (c *Client) GetOutputDestination(ctx context.Context) (domain.EndpointSettings, error) {
	data, err := c.request(ctx, "GetStreamServiceSettings", nil)
	if err != nil {
		return domain.EndpointSettings{}, err
	}
	var resp struct {
		StreamServiceType     string                `json:"streamServiceType"`
		StreamServiceSettings streamServiceSettings `json:"streamServiceSettings"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.EndpointSettings{}, fmt.Errorf("decode stream service settings: %w", err)
	}
	return domain.EndpointSettings{
		Server: resp.StreamServiceSettings.Server,
		Key:    resp.StreamServiceSettings.Key,
	}, nil
}

// SetOutputDestination implements ports.EncoderControl.
func (c *Client) SetOutputDestination(ctx context.Context, settings domain.EndpointSettings) error {
	_, err := c.request(ctx, "SetStreamServiceSettings", map[string]interface{}{
		"streamServiceType": streamServiceCustom,
		"streamServiceSettings": streamServiceSettings{
			Server: settings.Server,
			Key:    settings.Key,
		},
	})
	return err
}

// SwitchScene implements ports.EncoderControl.
func (c *Client) SwitchScene(ctx context.Context, sceneName string) error {
	_, err := c.request(ctx, "SetCurrentProgramScene", map[string]interface{}{
		"sceneName": sceneName,
	})
	return err
}

// SetSourceText implements ports.EncoderControl.
func (c *Client) SetSourceText(ctx context.Context, sourceName, text string) error {
	_, err := c.request(ctx, "SetInputSettings", map[string]interface{}{
		"inputName": sourceName,
		"inputSettings": map[string]interface{}{
			"text": text,
		},
		"overlay": true,
	})
	return err
}
