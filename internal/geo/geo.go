// Package geo provides the great-circle math shared by the anomaly
// detector and the trajectory analyzer: haversine distance, initial
// bearing, and forward position projection. It generalizes the teacher's
// (saviobatista-go1090) CPR decoder's spherical-geometry helpers in
// internal/adsb/cpr.go to plain WGS84-ish great-circle math, since this
// module has no CPR grid to invert.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for all great-circle math
// in this package, per spec.md §5 item 5's worked examples.
const EarthRadiusMeters = 6_371_000.0

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineDistance returns the great-circle distance in meters between two
// lat/lon points given in degrees.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRadians(lat1), toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// InitialBearing returns the initial great-circle bearing in degrees
// [0,360) from point 1 to point 2.
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRadians(lat1), toRadians(lat2)
	dLambda := toRadians(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x)
	return math.Mod(toDegrees(theta)+360, 360)
}

// Destination projects forward from lat1/lon1 by distanceM meters along
// bearingDeg degrees, returning the resulting lat/lon in degrees.
func Destination(lat1, lon1, bearingDeg, distanceM float64) (lat2, lon2 float64) {
	phi1 := toRadians(lat1)
	lambda1 := toRadians(lon1)
	theta := toRadians(bearingDeg)
	delta := distanceM / EarthRadiusMeters

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return toDegrees(phi2), math.Mod(toDegrees(lambda2)+540, 360) - 180
}
