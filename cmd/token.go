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

package mediacmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/timelinize/mediaimport/datasources/googlephotos"
	"golang.org/x/oauth2"
)

func loadToken(filename string) (*oauth2.Token, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading OAuth2 token: %w", err)
	}
	var tkn *oauth2.Token
	if err := json.Unmarshal(data, &tkn); err != nil {
		return nil, fmt.Errorf("decoding OAuth2 token: %w", err)
	}
	if tkn == nil || tkn.AccessToken == "" {
		return nil, fmt.Errorf("OAuth2 token in %s is empty", filename)
	}
	return tkn, nil
}

func saveToken(filename string, tkn *oauth2.Token) error {
	data, err := json.Marshal(tkn)
	if err != nil {
		return fmt.Errorf("encoding OAuth2 token: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("storing refreshed OAuth2 token: %w", err)
	}
	return nil
}

// persistedTokenSource wraps a TokenSource and writes
// refreshed tokens back to the token file.
type persistedTokenSource struct {
	ts       oauth2.TokenSource
	filename string

	mu    sync.Mutex
	token *oauth2.Token
}

func (ps *persistedTokenSource) Token() (*oauth2.Token, error) {
	tkn, err := ps.ts.Token()
	if err != nil {
		return tkn, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if tkn.AccessToken != ps.token.AccessToken {
		ps.token = tkn
		if err := saveToken(ps.filename, tkn); err != nil {
			return nil, err
		}
	}

	return tkn, nil
}

// googlePhotosClient returns a client for the library that the token in
// the config grants access to.
func googlePhotosClient(ctx context.Context, gp GooglePhotosConfig) (*googlephotos.Client, error) {
	tkn, err := loadToken(gp.TokenFile)
	if err != nil {
		return nil, err
	}
	oauthCfg := &oauth2.Config{
		ClientID:     gp.ClientID,
		ClientSecret: gp.ClientSecret,
		Endpoint:     googlephotos.Endpoint,
		Scopes:       []string{googlephotos.Scope},
	}
	src := &persistedTokenSource{
		ts:       oauthCfg.TokenSource(ctx, tkn),
		filename: gp.TokenFile,
		token:    tkn,
	}
	return googlephotos.NewClient(ctx, src), nil
}
