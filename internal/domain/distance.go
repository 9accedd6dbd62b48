package domain

import "math"

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance in kilometers
// between two points given in decimal degrees. NaN inputs yield NaN.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// DistanceBetween is DistanceKm over two positions.
func DistanceBetween(a, b Position) float64 {
	return DistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
