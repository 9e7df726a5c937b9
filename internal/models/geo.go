package models

import (
	"fmt"
	"math"
)

// GeoPoint описывает географическую точку в формате GeoJSON.
// Координаты хранятся в порядке [долгота, широта].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint создаёт точку из долготы и широты.
func NewGeoPoint(longitude, latitude float64) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: [2]float64{longitude, latitude},
	}
}

// Longitude возвращает долготу точки.
func (p GeoPoint) Longitude() float64 { return p.Coordinates[0] }

// Latitude возвращает широту точки.
func (p GeoPoint) Latitude() float64 { return p.Coordinates[1] }

// Validate проверяет, что координаты лежат в допустимых диапазонах.
func (p GeoPoint) Validate() error {
	lon, lat := p.Coordinates[0], p.Coordinates[1]
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("координаты должны быть конечными числами")
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("долгота должна быть в диапазоне [-180, 180], получено %v", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("широта должна быть в диапазоне [-90, 90], получено %v", lat)
	}
	return nil
}
