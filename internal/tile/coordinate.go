// Package tile parses and formats the z/x/y addresses of journey tiles.
package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// PathPrefix is the URL prefix intercepted by the tile worker.
	PathPrefix = "/journey-tiles-sw/"

	// MaxZoom keeps 2^z representable as an int on every platform.
	MaxZoom = 30

	// Size is the edge length in pixels of the raster tiles the map expects.
	Size = 256
)

var (
	ErrMalformedPath = errors.New("malformed tile path")
	ErrOutOfRange    = errors.New("tile coordinate out of range")
)

// ParseError describes why a request path is not a tile address.
type ParseError struct {
	Input string
	Kind  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q", e.Kind, e.Input)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// Coordinate addresses a single tile. The zero value is the root tile.
type Coordinate struct {
	Z int
	X int
	Y int
}

// Key is the canonical cache identity of a Coordinate.
type Key string

func (c Coordinate) Key() Key {
	return Key(fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y))
}

// Path returns the request path the worker intercepts for c.
func (c Coordinate) Path() string {
	return PathPrefix + string(c.Key())
}

func (c Coordinate) String() string {
	return string(c.Key())
}

// Valid reports whether x and y lie within [0, 2^z).
func (c Coordinate) Valid() error {
	if c.Z < 0 || c.Z > MaxZoom {
		return &ParseError{Input: c.String(), Kind: ErrOutOfRange}
	}
	limit := 1 << c.Z
	if c.X < 0 || c.X >= limit || c.Y < 0 || c.Y >= limit {
		return &ParseError{Input: c.String(), Kind: ErrOutOfRange}
	}
	return nil
}

// Parse extracts the coordinate from a path of the form
// /journey-tiles-sw/{z}/{x}/{y}.
func Parse(path string) (Coordinate, error) {
	rest, ok := strings.CutPrefix(path, PathPrefix)
	if !ok {
		return Coordinate{}, &ParseError{Input: path, Kind: ErrMalformedPath}
	}
	segments := strings.Split(rest, "/")
	if len(segments) != 3 {
		return Coordinate{}, &ParseError{Input: path, Kind: ErrMalformedPath}
	}
	c, err := ParseSegments(segments[0], segments[1], segments[2])
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Input = path
		}
		return Coordinate{}, err
	}
	return c, nil
}

// ParseSegments builds a coordinate from the three already split path
// segments, as handed over by the router.
func ParseSegments(z, x, y string) (Coordinate, error) {
	input := z + "/" + x + "/" + y

	values := [3]int{}
	for i, s := range [3]string{z, x, y} {
		v, err := parseSegment(s)
		if err != nil {
			return Coordinate{}, &ParseError{Input: input, Kind: err}
		}
		values[i] = v
	}

	c := Coordinate{Z: values[0], X: values[1], Y: values[2]}
	if err := c.Valid(); err != nil {
		return Coordinate{}, &ParseError{Input: input, Kind: ErrOutOfRange}
	}
	return c, nil
}

// ParseKey is the inverse of Coordinate.Key.
func ParseKey(k Key) (Coordinate, error) {
	segments := strings.Split(string(k), "/")
	if len(segments) != 3 {
		return Coordinate{}, &ParseError{Input: string(k), Kind: ErrMalformedPath}
	}
	return ParseSegments(segments[0], segments[1], segments[2])
}

// parseSegment accepts only plain decimal digits. strconv.Atoi alone would
// also take signs, so "+4" and "4" would map to the same tile.
func parseSegment(s string) (int, error) {
	if s == "" {
		return 0, ErrMalformedPath
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrMalformedPath
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// digits only, so the only failure left is overflow
		return 0, ErrOutOfRange
	}
	return v, nil
}
