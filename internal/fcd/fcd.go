// Package fcd decodes floating-car-data traces and the flat-file inputs
// that seed a simulation run: the FCD XML export, the RSU coordinate list
// and the building footprint list.
package fcd

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrBadFrame indicates a malformed or non-monotonic FCD timestep.
var ErrBadFrame = errors.New("fcd: bad frame")

// VehicleRecord is one vehicle sample inside a timestep. X/Y are WGS84
// longitude and latitude.
type VehicleRecord struct {
	ID    int
	X     float64
	Y     float64
	Speed float64
}

// Timestep is one FCD frame: a simulation timestamp and the vehicles
// reported at that instant.
type Timestep struct {
	Time     float64
	Vehicles []VehicleRecord
}

// Parser streams timesteps out of an fcd-export XML document without
// holding the whole trace in memory. Frames arrive in file order; callers
// enforce clock monotonicity.
type Parser struct {
	dec    *xml.Decoder
	closer io.Closer
}

// Open opens an FCD trace file for streaming.
func Open(path string) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fcd trace: %w", err)
	}
	return &Parser{dec: xml.NewDecoder(f), closer: f}, nil
}

// NewParser reads an FCD trace from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{dec: xml.NewDecoder(r)}
}

// Close releases the underlying file, if any.
func (p *Parser) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// rawTimestep mirrors the <timestep> element layout.
type rawTimestep struct {
	Time     string       `xml:"time,attr"`
	Vehicles []rawVehicle `xml:"vehicle"`
}

type rawVehicle struct {
	ID    string `xml:"id,attr"`
	X     string `xml:"x,attr"`
	Y     string `xml:"y,attr"`
	Speed string `xml:"speed,attr"`
}

// Next returns the next timestep, or io.EOF at end of trace.
func (p *Parser) Next() (*Timestep, error) {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "timestep" {
			continue
		}

		var raw rawTimestep
		if err := p.dec.DecodeElement(&raw, &start); err != nil {
			return nil, fmt.Errorf("%w: decode timestep: %v", ErrBadFrame, err)
		}
		return convertTimestep(&raw)
	}
}

func convertTimestep(raw *rawTimestep) (*Timestep, error) {
	t, err := strconv.ParseFloat(raw.Time, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: time %q: %v", ErrBadFrame, raw.Time, err)
	}
	ts := &Timestep{Time: t, Vehicles: make([]VehicleRecord, 0, len(raw.Vehicles))}
	for _, v := range raw.Vehicles {
		id, err := strconv.Atoi(v.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: vehicle id %q at t=%v: %v", ErrBadFrame, v.ID, t, err)
		}
		x, err := strconv.ParseFloat(v.X, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vehicle %d x at t=%v: %v", ErrBadFrame, id, t, err)
		}
		y, err := strconv.ParseFloat(v.Y, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vehicle %d y at t=%v: %v", ErrBadFrame, id, t, err)
		}
		speed := 0.0
		if v.Speed != "" {
			speed, err = strconv.ParseFloat(v.Speed, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: vehicle %d speed at t=%v: %v", ErrBadFrame, id, t, err)
			}
		}
		ts.Vehicles = append(ts.Vehicles, VehicleRecord{ID: id, X: x, Y: y, Speed: speed})
	}
	return ts, nil
}
