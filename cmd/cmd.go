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

// Package mediacmd facilitates the command line interface (CLI)
// and implements the main().
package mediacmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/datasources/googlephotos"
	"github.com/timelinize/mediaimport/datasources/media"
	"github.com/timelinize/mediaimport/importer"
	"github.com/timelinize/mediaimport/internal/googlemaps"
	"github.com/timelinize/mediaimport/scan"
	"github.com/timelinize/mediaimport/timezone"
	"go.uber.org/zap"
)

// Main runs the command line interface.
func Main() {
	if err := new(cli).rootCommand().Execute(); err != nil {
		catalog.Log.Fatal("command failed", zap.Error(err))
	}
}

// cli holds the state shared by the commands of one invocation.
type cli struct {
	configFile string
	cfg        *Config
	flags      flagValues
	logFile    *os.File
}

// flagValues are overrides of config fields. Only flags that were set
// on the command line are applied.
type flagValues struct {
	verbose bool
	logFile string

	assumeTZ  string
	forceTZ   string
	notes     string
	location  string
	offlineTZ bool
	ffprobe   string
	ffmpeg    string

	db           string
	recursive    bool
	storeContent bool
	thumbnails   bool
	maxEntrySize int64
	albumID      string
	noRemote     bool
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mediaimport",
		Short: "Imports photo and video archives into a catalog",
		Long: "Imports folders of photos and videos, including Google Takeout archives,\n" +
			"into a SQLite catalog, reconciling embedded metadata, takeout metadata\n" +
			"and the remote Google Photos library.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", DefaultConfigFilePath(), "Config file")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "Log debug messages")
	pf.StringVar(&c.flags.logFile, "log-file", "", "Also write the log to this file")
	pf.StringVar(&c.flags.assumeTZ, "assume-tz", "", "Timezone of naive local timestamps, like -07:00")
	pf.StringVar(&c.flags.forceTZ, "force-tz", "", "Rewrite every timestamp into this timezone")
	pf.StringVar(&c.flags.notes, "notes", "", "Notes for files that have none")
	pf.StringVar(&c.flags.location, "location", "", "Location for files that have none, as latitude,longitude")
	pf.BoolVar(&c.flags.offlineTZ, "offline-tz", false, "Look up timezones without network access")
	pf.StringVar(&c.flags.ffprobe, "ffprobe", "", "The ffprobe command")
	pf.StringVar(&c.flags.ffmpeg, "ffmpeg", "", "The ffmpeg command")

	root.AddCommand(
		c.importCommand(),
		c.probeCommand(),
		c.exifCommand(),
		c.saveConfigCommand(),
	)

	return root
}

func (c *cli) importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FOLDER",
		Short: "Import the media files and archives in a folder",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runImport,
	}
	f := cmd.Flags()
	f.StringVar(&c.flags.db, "db", "", "Catalog database file")
	f.BoolVarP(&c.flags.recursive, "recursive", "r", false, "Scan sub-folders too")
	f.BoolVar(&c.flags.storeContent, "store-content", false, "Store file contents in the database")
	f.BoolVar(&c.flags.thumbnails, "thumbnails", false, "Extract video thumbnails")
	f.Int64Var(&c.flags.maxEntrySize, "max-entry-size", 0, "Largest accepted file size in bytes")
	f.StringVar(&c.flags.albumID, "album-id", "", "Only match against this Google Photos album")
	f.BoolVar(&c.flags.noRemote, "no-remote", false, "Do not match against the Google Photos library")
	return cmd
}

func (c *cli) probeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE...",
		Short: "Print the record that importing files would produce",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.runProbe,
	}
}

func (c *cli) exifCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exif FILE",
		Short: "Print the EXIF tags of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tags, err := media.ExifTags(data)
			if err != nil {
				return fmt.Errorf("reading EXIF tags: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), tags)
		},
	}
}

func (c *cli) saveConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save-config",
		Short: "Save the effective configuration, including flags, to the config file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.cfg.save(c.configFile)
		},
	}
}

// setup loads the config file and applies the flags to it.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFile(c.configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg
	if err := c.applyFlags(cmd); err != nil {
		return err
	}

	catalog.SetVerbose(cfg.Verbose)
	if cfg.LogFile != "" {
		c.logFile, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		catalog.AddLogOutput(c.logFile)
	}
	return nil
}

func (c *cli) teardown() error {
	_ = catalog.Log.Sync()
	if c.logFile == nil {
		return nil
	}
	catalog.RemoveLogOutput(c.logFile)
	return c.logFile.Close()
}

func (c *cli) applyFlags(cmd *cobra.Command) error {
	cfg, fv := c.cfg, c.flags
	changed := cmd.Flags().Changed

	if changed("verbose") {
		cfg.Verbose = fv.verbose
	}
	if changed("log-file") {
		cfg.LogFile = fv.logFile
	}
	if changed("assume-tz") {
		tz, err := catalog.ParseExplicitTimezone(fv.assumeTZ)
		if err != nil {
			return fmt.Errorf("--assume-tz: %w", err)
		}
		cfg.Import.AssumedTimezone = &tz
	}
	if changed("force-tz") {
		tz, err := catalog.ParseExplicitTimezone(fv.forceTZ)
		if err != nil {
			return fmt.Errorf("--force-tz: %w", err)
		}
		cfg.Import.ForcedTimezone = &tz
	}
	if changed("notes") {
		cfg.Import.AssumedNotes = fv.notes
	}
	if changed("location") {
		loc, err := parseLocation(fv.location)
		if err != nil {
			return fmt.Errorf("--location: %w", err)
		}
		cfg.Import.AssumedLocation = loc
	}
	if changed("offline-tz") {
		cfg.OfflineTimezones = fv.offlineTZ
	}
	if changed("ffprobe") {
		cfg.FFmpeg.ProbeCommand = fv.ffprobe
	}
	if changed("ffmpeg") {
		cfg.FFmpeg.ExtractCommand = fv.ffmpeg
	}
	if changed("db") {
		cfg.DatabasePath = fv.db
	}
	if changed("recursive") {
		cfg.Recursive = fv.recursive
	}
	if changed("store-content") {
		cfg.StoreContent = fv.storeContent
	}
	if changed("thumbnails") {
		cfg.Thumbnails = fv.thumbnails
	}
	if changed("max-entry-size") {
		cfg.MaxEntrySize = fv.maxEntrySize
	}
	if changed("album-id") {
		cfg.GooglePhotos.AlbumID = fv.albumID
	}
	if changed("no-remote") && fv.noRemote {
		cfg.GooglePhotos.TokenFile = ""
	}
	return nil
}

// newImporter wires the collaborators named in the config. The remote
// library is only loaded if withRemote is set.
func (c *cli) newImporter(ctx context.Context, progress *catalog.Progress, withRemote bool) (*importer.Importer, error) {
	cfg := c.cfg
	imp := &importer.Importer{
		Options:    cfg.Import,
		Prober:     cfg.FFmpeg,
		Extractor:  cfg.FFmpeg,
		Thumbnails: cfg.Thumbnails,
		TempDir:    cfg.TempDir,
		RecentTags: catalog.NewRecentTags(catalog.DefaultRecentTagsSize),
		Progress:   progress,
		Logger:     catalog.Log.Named("importer"),
	}

	if cfg.GoogleMapsAPIKey != "" {
		maps := googlemaps.NewClient(ctx, cfg.GoogleMapsAPIKey, cfg.GoogleMapsRateLimit)
		maps.Logger = catalog.Log.Named("googlemaps")
		imp.Geocoder = maps
		if !cfg.OfflineTimezones {
			imp.Lookup = maps
		}
	}
	if imp.Lookup == nil {
		imp.Lookup = new(timezone.OfflineLookup)
	}

	if withRemote && cfg.GooglePhotos.enabled() {
		client, err := googlePhotosClient(ctx, cfg.GooglePhotos)
		if err != nil {
			return nil, err
		}
		client.Logger = catalog.Log.Named("googlephotos")

		fetch := googlephotos.PageFunc(client.ListMediaItems)
		if cfg.GooglePhotos.AlbumID != "" {
			fetch = client.SearchAlbum(cfg.GooglePhotos.AlbumID)
		}
		progress.StartStage("Loading remote library")
		imp.Remote, err = googlephotos.LoadIndex(ctx, fetch, progress, client.Logger)
		if err != nil {
			return nil, err
		}
	}

	return imp, nil
}

func (c *cli) runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := trapSignals(cmd.Context())
	defer cancel()

	cfg := c.cfg
	logger := catalog.Log.Named("import")

	dbPath := cfg.databasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating database folder: %w", err)
	}
	store, err := catalog.OpenSQLiteStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	store.StoreContent = cfg.StoreContent

	progress := catalog.NewProgress(logger)
	scanner, err := scan.New(args[0], scan.Options{
		Recursive:    cfg.Recursive,
		MaxEntrySize: cfg.MaxEntrySize,
		Progress:     progress,
		Logger:       catalog.Log.Named("scan"),
	})
	if err != nil {
		return err
	}

	imp, err := c.newImporter(ctx, progress, true)
	if err != nil {
		return err
	}
	imp.Store = store

	logger.Info("starting import",
		zap.String("folder", args[0]),
		zap.Int("files", len(scanner.Files())),
		zap.String("size", catalog.FormatBytes(scanner.TotalBytes())),
		zap.String("database", dbPath),
		zap.Stringer("catalog_id", store.ID()))

	summary, err := imp.Run(ctx, scanner)
	logWarnings(summary.Warnings)
	if recent := imp.RecentTags.Recent(); len(recent) > 0 {
		names := make([]string, len(recent))
		for i, tag := range recent {
			names[i] = tag.Name
		}
		logger.Info("recently used tags", zap.Strings("tags", names))
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), summary)
}

type probeResult struct {
	Record   *catalog.Record   `json:"record,omitempty"`
	Warnings []catalog.Warning `json:"warnings,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func (c *cli) runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := trapSignals(cmd.Context())
	defer cancel()

	imp, err := c.newImporter(ctx, nil, false)
	if err != nil {
		return err
	}

	results := make([]probeResult, 0, len(args))
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(arg)
		if err != nil {
			return err
		}
		rec, warnings, err := imp.ProcessFile(ctx, importer.File{
			Path:    filepath.ToSlash(arg),
			Content: content,
			ModTime: info.ModTime(),
		})
		res := probeResult{Record: rec, Warnings: warnings}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return writeJSON(cmd.OutOrStdout(), results)
}

// logWarnings writes every warning to the unsampled warnings log.
func logWarnings(warnings []catalog.Warning) {
	warnLog := catalog.Log.Named(catalog.WarningsLoggerName)
	for _, w := range warnings {
		warnLog.Warn(w.Details,
			zap.Stringer("kind", w.Kind),
			zap.String("filename", w.Filename))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(v)
}
