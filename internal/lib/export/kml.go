package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml"

	"github.com/shaktipath/safepath/server/internal/lib/facilities"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
	"github.com/shaktipath/safepath/server/internal/storage"
)

// Route line colors by risk level
var riskColors = map[safety.RiskLevel]color.Color{
	safety.RiskLow:    color.RGBA{R: 0x16, G: 0xa3, B: 0x4a, A: 0xff},
	safety.RiskMedium: color.RGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
	safety.RiskHigh:   color.RGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff},
}

var facilityIcons = map[facilities.Category]string{
	facilities.Hospital: "http://maps.google.com/mapfiles/kml/shapes/hospitals.png",
	facilities.Police:   "http://maps.google.com/mapfiles/kml/shapes/police.png",
	facilities.Liquor:   "http://maps.google.com/mapfiles/kml/shapes/bars.png",
}

// WriteRouteKML writes the route line and its facilities as an indented KML document
func WriteRouteKML(w io.Writer, r *storage.RouteRecord) error {
	doc := RouteKML(r)
	if err := doc.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

// RouteKML builds the KML document for a saved route
func RouteKML(r *storage.RouteRecord) *kml.CompoundElement {
	a := r.Assessment

	lineColor, ok := riskColors[a.RiskLevel]
	if !ok {
		lineColor = riskColors[safety.RiskMedium]
	}

	children := []kml.Element{
		kml.Name(fmt.Sprintf("%s to %s", label(r.Source), label(r.Destination))),
		kml.Description(fmt.Sprintf("Safety score %d/100 (%s risk). %s, %s.", a.OverallScore, a.RiskLevel, r.Distance, r.Duration)),
		kml.SharedStyle("route",
			kml.LineStyle(
				kml.Color(lineColor),
				kml.Width(5),
			),
		),
	}
	for _, category := range facilities.Categories {
		children = append(children, kml.SharedStyle(string(category),
			kml.IconStyle(
				kml.Icon(kml.Href(facilityIcons[category])),
			),
		))
	}

	children = append(children,
		kml.Placemark(
			kml.Name("Route"),
			kml.StyleURL("#route"),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coordinates(r.Coordinates)...),
			),
		),
		endpoint("Start", r.Source),
		endpoint("Destination", r.Destination),
		facilityFolder("Hospitals", facilities.Hospital, a.Facilities.Hospitals),
		facilityFolder("Police stations", facilities.Police, a.Facilities.PoliceStations),
		facilityFolder("Alcohol shops", facilities.Liquor, a.Facilities.LiquorShops),
	)

	return kml.KML(kml.Document(children...))
}

func facilityFolder(name string, category facilities.Category, list []facilities.Facility) kml.Element {
	placemarks := []kml.Element{kml.Name(name)}
	for _, f := range list {
		placemarks = append(placemarks, kml.Placemark(
			kml.Name(f.Name),
			kml.Description(fmt.Sprintf("%.0f m from route", f.DistanceFromRoute)),
			kml.StyleURL("#"+string(category)),
			kml.Point(kml.Coordinates(coordinate(f.Location))),
		))
	}
	return kml.Folder(placemarks...)
}

func endpoint(name string, l geo.Location) kml.Element {
	return kml.Placemark(
		kml.Name(name),
		kml.Description(label(l)),
		kml.Point(kml.Coordinates(coordinate(l.Point))),
	)
}

func label(l geo.Location) string {
	if l.Address != "" {
		return l.Address
	}
	return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
}

func coordinate(p geo.Point) kml.Coordinate {
	return kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
}

func coordinates(points []geo.Point) []kml.Coordinate {
	out := make([]kml.Coordinate, len(points))
	for i, p := range points {
		out[i] = coordinate(p)
	}
	return out
}
