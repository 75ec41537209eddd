/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package googlephotos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/timelinize/mediaimport/catalog"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultAPIBase is the root of the Photos Library API.
const DefaultAPIBase = "https://photoslibrary.googleapis.com/v1"

// Scope grants read-only access to the library.
const Scope = "https://www.googleapis.com/auth/photoslibrary.readonly"

// Endpoint is Google's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Client lists media items of a Google Photos library.
type Client struct {
	HTTPClient *http.Client

	// Defaults to DefaultAPIBase.
	APIBase string

	// Items per page; the API allows at most 100.
	PageSize int

	Logger *zap.Logger
}

// NewClient returns a client authorized by tokens from src. The token
// exchange itself is done elsewhere.
func NewClient(ctx context.Context, src oauth2.TokenSource) *Client {
	return &Client{HTTPClient: oauth2.NewClient(ctx, src)}
}

// RemoteEntry is a media item of the remote library.
type RemoteEntry struct {
	RemoteID     string
	Filename     string
	CreationTime *time.Time
	Width        int
	Height       int
	MIMEType     string
	ProductURL   string
}

// Reference returns the catalog reference to the entry.
func (e RemoteEntry) Reference() catalog.ExternalReference {
	return catalog.ExternalReference{Service: catalog.ServiceGooglePhotos, ID: e.RemoteID}
}

// Page is one page of results.
type Page struct {
	Entries       []RemoteEntry
	NextPageToken string
}

// PageFunc fetches the page identified by pageToken; the first page has
// an empty token.
type PageFunc func(ctx context.Context, pageToken string) (Page, error)

// listMediaItems is the structure of the results
// of calling mediaItems in the Google Photos API.
type listMediaItems struct {
	MediaItems    []mediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

type mediaItem struct {
	MediaID       string        `json:"id"`
	ProductURL    string        `json:"productUrl"`
	BaseURL       string        `json:"baseUrl"`
	Description   string        `json:"description"`
	MIMEType      string        `json:"mimeType"`
	MediaMetadata mediaMetadata `json:"mediaMetadata"`
	Filename      string        `json:"filename"`
}

type mediaMetadata struct {
	CreationTime string `json:"creationTime"`
	Width        string `json:"width"`
	Height       string `json:"height"`
}

func (m mediaItem) remoteEntry() RemoteEntry {
	e := RemoteEntry{
		RemoteID:   m.MediaID,
		Filename:   m.Filename,
		MIMEType:   m.MIMEType,
		ProductURL: m.ProductURL,
	}
	if t, err := time.Parse(time.RFC3339Nano, m.MediaMetadata.CreationTime); err == nil {
		e.CreationTime = &t
	}
	// sizes are int64 values encoded as strings
	e.Width, _ = strconv.Atoi(m.MediaMetadata.Width)
	e.Height, _ = strconv.Atoi(m.MediaMetadata.Height)
	return e
}

func (l listMediaItems) page() Page {
	p := Page{NextPageToken: l.NextPageToken}
	for _, item := range l.MediaItems {
		p.Entries = append(p.Entries, item.remoteEntry())
	}
	return p
}

type listMediaItemsRequest struct {
	AlbumID   string `json:"albumId,omitempty"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

// ListMediaItems returns a page of all the media items in the library.
func (c *Client) ListMediaItems(ctx context.Context, pageToken string) (Page, error) {
	qs := url.Values{"pageSize": {strconv.Itoa(c.pageSize())}}
	if pageToken != "" {
		qs.Set("pageToken", pageToken)
	}

	var resp listMediaItems
	if err := c.apiRequest(ctx, http.MethodGet, "mediaItems?"+qs.Encode(), nil, &resp); err != nil {
		return Page{}, fmt.Errorf("listing media items: %w", err)
	}
	return resp.page(), nil
}

// SearchAlbum returns a PageFunc for the media items of an album.
func (c *Client) SearchAlbum(albumID string) PageFunc {
	return func(ctx context.Context, pageToken string) (Page, error) {
		body := listMediaItemsRequest{
			AlbumID:   albumID,
			PageSize:  c.pageSize(),
			PageToken: pageToken,
		}

		var resp listMediaItems
		if err := c.apiRequest(ctx, http.MethodPost, "mediaItems:search", body, &resp); err != nil {
			return Page{}, fmt.Errorf("searching album %s: %w", albumID, err)
		}
		return resp.page(), nil
	}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return catalog.Log.Named("googlephotos")
}

func (c *Client) pageSize() int {
	const maxPageSize = 100
	if c.PageSize <= 0 || c.PageSize > maxPageSize {
		return maxPageSize
	}
	return c.PageSize
}

func (c *Client) apiRequest(ctx context.Context, method, endpoint string, body, decodeInto any) error {
	base := c.APIBase
	if base == "" {
		base = DefaultAPIBase
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(base, "/")+"/"+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	c.logger().Debug("photos API request",
		zap.String("method", method),
		zap.String("endpoint", endpoint))
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyText, err2 := io.ReadAll(io.LimitReader(resp.Body, 1024*256))
		if err2 == nil {
			return fmt.Errorf("HTTP %d: %s: >>> %s <<<", resp.StatusCode, resp.Status, bytes.TrimSpace(bodyText))
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(decodeInto); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
