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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/datasources/media"
	"github.com/timelinize/mediaimport/internal/googlemaps"
	"go.uber.org/zap"
)

// Config describes how imports are run. It is read from a JSON file;
// command line flags override individual fields.
type Config struct {
	// The SQLite database that imported records are added to.
	DatabasePath string `json:"database_path,omitempty"`

	// Store the bytes of each media file in the database as well.
	StoreContent bool `json:"store_content,omitempty"`

	// Scan sub-folders of the import folder too.
	Recursive bool `json:"recursive,omitempty"`

	// Entries declaring a larger size abort the scan.
	MaxEntrySize int64 `json:"max_entry_size,omitempty"`

	// Defaults applied to every import.
	Import catalog.ImportOptions `json:"import,omitempty"`

	// Enables timezone lookups and reverse geocoding with Google Maps.
	// Without a key, timezones are looked up offline and locations are
	// not geocoded.
	GoogleMapsAPIKey    string               `json:"google_maps_api_key,omitempty"`
	GoogleMapsRateLimit googlemaps.RateLimit `json:"google_maps_rate_limit,omitempty"`

	// Use the bundled timezone polygons even if an API key is set.
	OfflineTimezones bool `json:"offline_timezones,omitempty"`

	GooglePhotos GooglePhotosConfig `json:"google_photos,omitempty"`

	// The ffprobe and ffmpeg commands.
	FFmpeg media.FFmpeg `json:"ffmpeg,omitempty"`

	// Extract a thumbnail from every video.
	Thumbnails bool `json:"thumbnails,omitempty"`

	// Where videos are staged for probing.
	TempDir string `json:"temp_dir,omitempty"`

	// Also write the log, as JSON, to this file.
	LogFile string `json:"log_file,omitempty"`

	Verbose bool `json:"verbose,omitempty"`
}

// GooglePhotosConfig links imported files to a Google Photos library.
// The OAuth token must have been obtained already and saved to TokenFile.
type GooglePhotosConfig struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	TokenFile    string `json:"token_file,omitempty"`

	// Restricts the remote library to one album.
	AlbumID string `json:"album_id,omitempty"`
}

func (gp GooglePhotosConfig) enabled() bool { return gp.TokenFile != "" }

func (cfg *Config) databasePath() string {
	if cfg.DatabasePath != "" {
		return cfg.DatabasePath
	}
	return filepath.Join(DefaultDataDir(), "catalog.db")
}

// save persists the config to filename.
func (cfg *Config) save(filename string) error {
	err := os.MkdirAll(filepath.Dir(filename), 0o755)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	cfgFile, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer cfgFile.Close()
	enc := json.NewEncoder(cfgFile)
	enc.SetIndent("", "\t")
	if err = enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	catalog.Log.Named("config").Info("saved config file", zap.String("path", filename))
	return nil
}

// loadConfigFile reads the config at filename. A missing file is only an
// error if it is not the default config file.
func loadConfigFile(filename string) (*Config, error) {
	cfgBytes, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && filename == DefaultConfigFilePath() {
			return new(Config), nil
		}
		return nil, err
	}
	cfg := new(Config)
	if err := json.Unmarshal(cfgBytes, cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", filename, err)
	}
	return cfg, nil
}

// DefaultConfigFilePath returns the file path where
// configuration is persisted.
func DefaultConfigFilePath() string {
	cfgDir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(cfgDir, "mediaimport", "config.json")
	}
	cfgDir, err = os.UserHomeDir()
	if err == nil {
		return filepath.Join(cfgDir, ".mediaimport", "config.json")
	}
	return filepath.Join(".mediaimport", "config.json")
}

// DefaultDataDir returns the folder where the catalog database is
// kept by default.
func DefaultDataDir() string {
	dataDir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(dataDir, "mediaimport")
	}
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(homeDir, ".mediaimport")
	}
	return ".mediaimport"
}

// parseLocation parses "latitude,longitude" or "latitude,longitude,altitude".
func parseLocation(s string) (*catalog.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("location %q: expected latitude,longitude[,altitude]", s)
	}
	var coords [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", s, err)
		}
		coords[i] = v
	}
	if coords[0] < -90 || coords[0] > 90 || coords[1] < -180 || coords[1] > 180 {
		return nil, fmt.Errorf("location %q: coordinates out of range", s)
	}
	loc := &catalog.Location{Latitude: coords[0], Longitude: coords[1]}
	if len(parts) == 3 {
		loc.Altitude = &coords[2]
	}
	return loc, nil
}
