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

// Package testhelpers builds fixtures shared by tests of several packages.
package testhelpers

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// ArchiveFile is a member of a fixture archive.
type ArchiveFile struct {
	Name    string
	Content []byte
	Dir     bool
}

// WriteTarGz writes a gzip-compressed tar archive named name into dir and
// returns its path. Members are written in the given order.
func WriteTarGz(t testing.TB, dir, name string, files []ArchiveFile) string {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	modTime := time.Date(2020, 5, 17, 10, 0, 0, 0, time.UTC)

	for _, f := range files {
		hdr := &tar.Header{
			Name:    f.Name,
			Mode:    0o644,
			Size:    int64(len(f.Content)),
			ModTime: modTime,
			Format:  tar.FormatPAX,
		}
		if f.Dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header for %q: %v", f.Name, err)
		}
		if !f.Dir {
			if _, err := tw.Write(f.Content); err != nil {
				t.Fatalf("writing tar content for %q: %v", f.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}

	fpath := filepath.Join(dir, name)
	if err := os.WriteFile(fpath, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return fpath
}

// JPEG returns a small, valid JPEG image without metadata.
func JPEG(t testing.TB, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding JPEG: %v", err)
	}
	return buf.Bytes()
}

// Rational is an unsigned EXIF rational.
type Rational struct{ Num, Den uint32 }

// ExifFields selects the tags written by JPEGWithExif. Zero values are omitted.
type ExifFields struct {
	Make, Model string
	Orientation uint16

	DateTimeOriginal  string
	DateTimeDigitized string

	ExposureTime *Rational
	FNumber      *Rational
	FocalLength  *Rational
	ISO          uint16

	GPSLatitudeRef  string
	GPSLatitude     []Rational
	GPSLongitudeRef string
	GPSLongitude    []Rational
	GPSAltitudeRef  *byte
	GPSAltitude     *Rational
	GPSDOP          *Rational
	GPSTimeStamp    []Rational
	GPSDateStamp    string

	// Writes the altitude as text instead of a rational.
	MalformedAltitude bool
}

// JPEGWithExif returns a valid JPEG image with an APP1 Exif segment
// holding fields.
func JPEGWithExif(t testing.TB, width, height int, fields ExifFields) []byte {
	t.Helper()
	plain := JPEG(t, width, height)
	tiffData := buildTIFF(fields)

	var app1 bytes.Buffer
	app1.Write([]byte{0xFF, 0xE1})
	payloadLen := 2 + 6 + len(tiffData)
	_ = binary.Write(&app1, binary.BigEndian, uint16(payloadLen))
	app1.WriteString("Exif\x00\x00")
	app1.Write(tiffData)

	out := make([]byte, 0, len(plain)+app1.Len())
	out = append(out, plain[:2]...) // SOI
	out = append(out, app1.Bytes()...)
	out = append(out, plain[2:]...)
	return out
}

const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte // little-endian value bytes
}

func asciiEntry(tag uint16, s string) ifdEntry {
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(s) + 1), data: append([]byte(s), 0)}
}

func shortEntry(tag uint16, v uint16) ifdEntry {
	return ifdEntry{tag: tag, typ: typeShort, count: 1, data: binary.LittleEndian.AppendUint16(nil, v)}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	return ifdEntry{tag: tag, typ: typeLong, count: 1, data: binary.LittleEndian.AppendUint32(nil, v)}
}

func rationalEntry(tag uint16, rats ...Rational) ifdEntry {
	var data []byte
	for _, r := range rats {
		data = binary.LittleEndian.AppendUint32(data, r.Num)
		data = binary.LittleEndian.AppendUint32(data, r.Den)
	}
	return ifdEntry{tag: tag, typ: typeRational, count: uint32(len(rats)), data: data}
}

// ifdSize is the encoded size of an IFD and its out-of-line values.
func ifdSize(entries []ifdEntry) int {
	size := 2 + 12*len(entries) + 4
	for _, e := range entries {
		if len(e.data) > 4 {
			size += len(e.data) + len(e.data)%2
		}
	}
	return size
}

func encodeIFD(entries []ifdEntry, start int) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	var ifd, extra []byte
	dataOffset := start + 2 + 12*len(entries) + 4

	ifd = binary.LittleEndian.AppendUint16(ifd, uint16(len(entries)))
	for _, e := range entries {
		ifd = binary.LittleEndian.AppendUint16(ifd, e.tag)
		ifd = binary.LittleEndian.AppendUint16(ifd, e.typ)
		ifd = binary.LittleEndian.AppendUint32(ifd, e.count)
		if len(e.data) <= 4 {
			val := make([]byte, 4)
			copy(val, e.data)
			ifd = append(ifd, val...)
			continue
		}
		ifd = binary.LittleEndian.AppendUint32(ifd, uint32(dataOffset+len(extra)))
		extra = append(extra, e.data...)
		if len(e.data)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	ifd = binary.LittleEndian.AppendUint32(ifd, 0) // no next IFD
	return append(ifd, extra...)
}

func buildTIFF(f ExifFields) []byte {
	var ifd0, exifIFD, gpsIFD []ifdEntry

	if f.Make != "" {
		ifd0 = append(ifd0, asciiEntry(0x010F, f.Make))
	}
	if f.Model != "" {
		ifd0 = append(ifd0, asciiEntry(0x0110, f.Model))
	}
	if f.Orientation != 0 {
		ifd0 = append(ifd0, shortEntry(0x0112, f.Orientation))
	}

	if f.ExposureTime != nil {
		exifIFD = append(exifIFD, rationalEntry(0x829A, *f.ExposureTime))
	}
	if f.FNumber != nil {
		exifIFD = append(exifIFD, rationalEntry(0x829D, *f.FNumber))
	}
	if f.ISO != 0 {
		exifIFD = append(exifIFD, shortEntry(0x8827, f.ISO))
	}
	if f.DateTimeOriginal != "" {
		exifIFD = append(exifIFD, asciiEntry(0x9003, f.DateTimeOriginal))
	}
	if f.DateTimeDigitized != "" {
		exifIFD = append(exifIFD, asciiEntry(0x9004, f.DateTimeDigitized))
	}
	if f.FocalLength != nil {
		exifIFD = append(exifIFD, rationalEntry(0x920A, *f.FocalLength))
	}

	if f.GPSLatitudeRef != "" {
		gpsIFD = append(gpsIFD, asciiEntry(0x0001, f.GPSLatitudeRef))
	}
	if len(f.GPSLatitude) > 0 {
		gpsIFD = append(gpsIFD, rationalEntry(0x0002, f.GPSLatitude...))
	}
	if f.GPSLongitudeRef != "" {
		gpsIFD = append(gpsIFD, asciiEntry(0x0003, f.GPSLongitudeRef))
	}
	if len(f.GPSLongitude) > 0 {
		gpsIFD = append(gpsIFD, rationalEntry(0x0004, f.GPSLongitude...))
	}
	if f.GPSAltitudeRef != nil {
		gpsIFD = append(gpsIFD, ifdEntry{tag: 0x0005, typ: typeByte, count: 1, data: []byte{*f.GPSAltitudeRef}})
	}
	if f.MalformedAltitude {
		gpsIFD = append(gpsIFD, asciiEntry(0x0006, "12 ft"))
	} else if f.GPSAltitude != nil {
		gpsIFD = append(gpsIFD, rationalEntry(0x0006, *f.GPSAltitude))
	}
	if len(f.GPSTimeStamp) > 0 {
		gpsIFD = append(gpsIFD, rationalEntry(0x0007, f.GPSTimeStamp...))
	}
	if f.GPSDOP != nil {
		gpsIFD = append(gpsIFD, rationalEntry(0x000B, *f.GPSDOP))
	}
	if f.GPSDateStamp != "" {
		gpsIFD = append(gpsIFD, asciiEntry(0x001D, f.GPSDateStamp))
	}

	// pointer entries have a fixed size, so sizes can be computed first
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, longEntry(0x8769, 0))
	}
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, longEntry(0x8825, 0))
	}

	const headerSize = 8
	ifd0Start := headerSize
	exifStart := ifd0Start + ifdSize(ifd0)
	gpsStart := exifStart
	if len(exifIFD) > 0 {
		gpsStart += ifdSize(exifIFD)
	}

	for i := range ifd0 {
		switch ifd0[i].tag {
		case 0x8769:
			ifd0[i] = longEntry(0x8769, uint32(exifStart))
		case 0x8825:
			ifd0[i] = longEntry(0x8825, uint32(gpsStart))
		}
	}

	out := []byte{'I', 'I', 42, 0}
	out = binary.LittleEndian.AppendUint32(out, uint32(ifd0Start))
	out = append(out, encodeIFD(ifd0, ifd0Start)...)
	if len(exifIFD) > 0 {
		out = append(out, encodeIFD(exifIFD, exifStart)...)
	}
	if len(gpsIFD) > 0 {
		out = append(out, encodeIFD(gpsIFD, gpsStart)...)
	}
	return out
}
