// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package spatial

import "math"

// gnomonicForward projects a global position onto the tangent plane
// at (originLat, originLon), both in degrees, returning shard-local
// meters (spec §4.3: "gnomonic projection about that origin"). A
// gnomonic (not equirectangular) projection is required so the 10cm
// round-trip tolerance holds at high latitude (spec §8 scenario 2, 60°
// latitude) — equirectangular's longitude scaling error grows with
// latitude and blows that budget well before a one-ring halo away from
// the origin.
func gnomonicForward(originLat, originLon, lat, lon float64) (x, y float64) {
	lat0 := originLat * math.Pi / 180
	lon0 := originLon * math.Pi / 180
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180

	cosc := math.Sin(lat0)*math.Sin(phi) + math.Cos(lat0)*math.Cos(phi)*math.Cos(lambda-lon0)
	if cosc == 0 {
		// 90 degrees from origin: undefined in gnomonic projection.
		// Shard-scale callers never approach this; clamp rather than
		// divide by zero.
		cosc = 1e-12
	}

	x = EarthRadiusMeters * math.Cos(phi) * math.Sin(lambda-lon0) / cosc
	y = EarthRadiusMeters * (math.Cos(lat0)*math.Sin(phi) - math.Sin(lat0)*math.Cos(phi)*math.Cos(lambda-lon0)) / cosc
	return x, y
}

// gnomonicInverse is the exact inverse of gnomonicForward.
func gnomonicInverse(originLat, originLon, x, y float64) (lat, lon float64) {
	lat0 := originLat * math.Pi / 180
	lon0 := originLon * math.Pi / 180

	rho := math.Hypot(x, y)
	if rho == 0 {
		return originLat, originLon
	}
	c := math.Atan2(rho, EarthRadiusMeters)
	sinC, cosC := math.Sin(c), math.Cos(c)

	phi := math.Asin(cosC*math.Sin(lat0) + (y*sinC*math.Cos(lat0))/rho)
	lambda := lon0 + math.Atan2(x*sinC, rho*math.Cos(lat0)*cosC-y*math.Sin(lat0)*sinC)

	return phi * 180 / math.Pi, lambda * 180 / math.Pi
}

// ToLocal converts a global position into the frame local to a shard
// whose hex centroid is origin.
func ToLocal(origin Position, p Position) Local {
	x, y := gnomonicForward(origin.Lat, origin.Lon, p.Lat, p.Lon)
	return Local{X: x, Y: y, Z: p.Alt - origin.Alt}
}

// ToGlobal is the inverse of ToLocal.
func ToGlobal(origin Position, l Local) Position {
	lat, lon := gnomonicInverse(origin.Lat, origin.Lon, l.X, l.Y)
	return Position{Lat: lat, Lon: lon, Alt: l.Z + origin.Alt}
}
