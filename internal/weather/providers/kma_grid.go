package providers

import "math"

// Lambert conformal conic projection of the KMA 5 km forecast grid.
const (
	kmaEarthRadius = 6371.00877 // km
	kmaGridSpacing = 5.0        // km
	kmaStdLat1     = 30.0
	kmaStdLat2     = 60.0
	kmaOriginLon   = 126.0
	kmaOriginLat   = 38.0
	kmaOriginX     = 43
	kmaOriginY     = 136

	kmaGridMaxX = 149
	kmaGridMaxY = 253
)

// kmaGrid converts a coordinate to the forecast grid cell (nx, ny).
func kmaGrid(lat, lon float64) (nx, ny int) {
	const rad = math.Pi / 180.0
	re := kmaEarthRadius / kmaGridSpacing
	slat1 := kmaStdLat1 * rad
	slat2 := kmaStdLat2 * rad
	olon := kmaOriginLon * rad
	olat := kmaOriginLat * rad

	sn := math.Tan(math.Pi*0.25+slat2*0.5) / math.Tan(math.Pi*0.25+slat1*0.5)
	sn = math.Log(math.Cos(slat1)/math.Cos(slat2)) / math.Log(sn)
	sf := math.Tan(math.Pi*0.25 + slat1*0.5)
	sf = math.Pow(sf, sn) * math.Cos(slat1) / sn
	ro := math.Tan(math.Pi*0.25 + olat*0.5)
	ro = re * sf / math.Pow(ro, sn)

	ra := math.Tan(math.Pi*0.25 + lat*rad*0.5)
	ra = re * sf / math.Pow(ra, sn)
	theta := lon*rad - olon
	if theta > math.Pi {
		theta -= 2.0 * math.Pi
	}
	if theta < -math.Pi {
		theta += 2.0 * math.Pi
	}
	theta *= sn

	nx = int(math.Floor(ra*math.Sin(theta) + kmaOriginX + 0.5))
	ny = int(math.Floor(ro - ra*math.Cos(theta) + kmaOriginY + 0.5))
	return nx, ny
}

func inKMAGrid(nx, ny int) bool {
	return nx >= 1 && nx <= kmaGridMaxX && ny >= 1 && ny <= kmaGridMaxY
}
