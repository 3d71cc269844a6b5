// Package callauto answers incoming calls against a call-automation REST
// endpoint, pointing the platform at our callback and media-streaming URLs.
package callauto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiVersion = "2023-10-15"

// Client is a minimal call-automation client: answer-call only. Call
// signaling state machines stay on the platform side.
type Client struct {
	endpoint    string
	accessKey   string
	callbackURI string
	mediaURI    string
	client      *http.Client
}

func New(endpoint, accessKey, callbackURI, mediaURI string) *Client {
	return &Client{
		endpoint:    endpoint,
		accessKey:   accessKey,
		callbackURI: callbackURI,
		mediaURI:    mediaURI,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type answerRequest struct {
	IncomingCallContext string               `json:"incomingCallContext"`
	CallbackURI         string               `json:"callbackUri"`
	MediaStreaming      *mediaStreamingSetup `json:"mediaStreamingConfiguration,omitempty"`
}

type mediaStreamingSetup struct {
	TransportURL  string `json:"transportUrl"`
	TransportType string `json:"transportType"`
	ContentType   string `json:"contentType"`
	AudioChannel  string `json:"audioChannelType"`
}

// Answer accepts the call and requests bidirectional media streaming to the
// session endpoint.
func (c *Client) Answer(ctx context.Context, incomingCallContext string) error {
	payload := answerRequest{
		IncomingCallContext: incomingCallContext,
		CallbackURI:         c.callbackURI,
	}
	if c.mediaURI != "" {
		payload.MediaStreaming = &mediaStreamingSetup{
			TransportURL:  c.mediaURI,
			TransportType: "websocket",
			ContentType:   "audio",
			AudioChannel:  "mixed",
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal answer request: %w", err)
	}

	url := fmt.Sprintf("%s/calling/callConnections:answer?api-version=%s", c.endpoint, apiVersion)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create answer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("answer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("answer status %d: %s", resp.StatusCode, errBody)
	}
	return nil
}
