package models

import (
	"database/sql/driver"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
)

// GeoPoint is a WGS84 point stored as PostGIS geometry. orb keeps
// points as (longitude, latitude).
type GeoPoint struct {
	orb.Point
}

func NewGeoPoint(latitude, longitude float64) *GeoPoint {
	return &GeoPoint{Point: orb.Point{longitude, latitude}}
}

func (p *GeoPoint) Longitude() float64 {
	return p.Point.Lon()
}

func (p *GeoPoint) Latitude() float64 {
	return p.Point.Lat()
}

func (p GeoPoint) Value() (driver.Value, error) {
	return ewkb.Value(p.Point, 4326).Value()
}

func (p *GeoPoint) Scan(value interface{}) error {
	return ewkb.Scanner(&p.Point).Scan(value)
}

func (GeoPoint) GormDataType() string {
	return "geometry(Point,4326)"
}
