package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vocdoni/consent-z-sandbox/api"
	"github.com/vocdoni/consent-z-sandbox/types"
)

// SubmitConsent posts a consent transition and returns the admission
// receipt. Rejections are returned as errors carrying the server message.
func (c *HTTPclient) SubmitConsent(req *api.ConsentRequest) (*api.ConsentResponse, error) {
	data, status, err := c.Request(HTTPPOST, req, nil, api.ConsentsEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	resp := &api.ConsentResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("could not unmarshal consent response: %w", err)
	}
	return resp, nil
}

// Root fetches the current accumulator root and size.
func (c *HTTPclient) Root() (*types.BigInt, uint64, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.RootEndpoint)
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusOK {
		return nil, 0, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	resp := &api.RootResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, 0, fmt.Errorf("could not unmarshal root response: %w", err)
	}
	return resp.Root, resp.Size, nil
}

// Reset clears the server accumulator and nullifier set. It only works
// against servers with test endpoints enabled.
func (c *HTTPclient) Reset() error {
	data, status, err := c.Request(HTTPPOST, nil, nil, api.ResetEndpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return nil
}
