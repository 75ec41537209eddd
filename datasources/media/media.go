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

// Package media extracts metadata from the bytes of photo and video files:
// EXIF tags, embedded motion-photo videos, probe output of video
// containers, and pixel dimensions.
package media

import (
	"path"
	"strings"
)

// Kind is the broad class of a media file.
type Kind int

// Media kinds.
const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	}
	return "unknown"
}

// KindByExtension uses the file extension to return a best-guess media kind.
// It returns false if the extension is not recognized.
func KindByExtension(filename string) (Kind, bool) {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := imageExts[ext]; ok {
		return KindImage, true
	}
	if _, ok := videoExts[ext]; ok {
		return KindVideo, true
	}
	return KindUnknown, false
}

// MIMEType guesses the media type of a file from its extension. It returns
// an empty string for unrecognized extensions.
func MIMEType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if mt, ok := imageExts[ext]; ok {
		return mt
	}
	if mt, ok := videoExts[ext]; ok {
		return mt
	}
	return ""
}

// KindOfMIME returns the kind of media described by a MIME type.
func KindOfMIME(mimeType string) Kind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	}
	return KindUnknown
}

// VideoMIMEType is the type given to image files that turn out to hold
// only a video stream.
const VideoMIMEType = "video/mp4"

// Recognized extensions and their media types.
var (
	imageExts = map[string]string{
		".avif": "image/avif",
		".bmp":  "image/bmp",
		".cr2":  "image/x-canon-cr2",
		".dng":  "image/x-adobe-dng",
		".gif":  "image/gif",
		".heic": "image/heic",
		".heif": "image/heif",
		".hif":  "image/heif", // fujifilm's heif extension
		".jpeg": "image/jpeg",
		".jpe":  "image/jpeg",
		".jpg":  "image/jpeg",
		".nef":  "image/x-nikon-nef",
		".orf":  "image/x-olympus-orf",
		".png":  "image/png",
		".raf":  "image/x-fuji-raf",
		".tif":  "image/tiff",
		".tiff": "image/tiff",
		".webp": "image/webp",
	}

	videoExts = map[string]string{
		".3g2":  "video/3gpp2",
		".3gp":  "video/3gpp",
		".3gpp": "video/3gpp",
		".avi":  "video/x-msvideo",
		".m2ts": "video/mp2t",
		".m4v":  "video/x-m4v",
		".mkv":  "video/x-matroska",
		".mov":  "video/quicktime",
		".mp":   "video/mp4", // sidecar of Pixel motion pictures
		".mp4":  "video/mp4",
		".mpeg": "video/mpeg",
		".mpg":  "video/mpeg",
		".mts":  "video/mp2t",
		".webm": "video/webm",
		".wmv":  "video/x-ms-wmv",
	}
)
