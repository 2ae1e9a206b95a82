package backend

import (
	"context"
	"net/http"
)

// Settings are the administrative settings of the site, keyed by name.
type Settings map[string]any

// ViewSettings fetches the named settings, or all of them when names is empty.
func (c *Client) ViewSettings(ctx context.Context, names ...string) (Settings, error) {
	req := struct {
		SettingNames []string `json:"setting_names,omitempty"`
		ViewAll      bool     `json:"view_all,omitempty"`
	}{SettingNames: names, ViewAll: len(names) == 0}

	var resp struct {
		Settings Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodPost, "/settings/view", req, &resp); err != nil {
		return nil, err
	}
	return resp.Settings, nil
}

// UpdateSettings changes the given settings.
func (c *Client) UpdateSettings(ctx context.Context, s Settings) error {
	return c.do(ctx, http.MethodPut, "/settings/update", map[string]Settings{"settings": s}, nil)
}
