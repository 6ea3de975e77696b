package edr

import "github.com/paulmach/orb/geojson"

// Query carries the request-level inputs of a locations request.
type Query struct {
	// Parameters restricts the result to these parameter ids; empty admits all.
	Parameters []string
	// BBox is [minX, minY, maxX, maxY] or the 6-value form with Z.
	BBox []float64
	// Datetime is an EDR instant or interval expression.
	Datetime string
	// Limit caps the number of locations or time steps. Non-positive
	// selects DefaultLimit.
	Limit int
	// LocationID selects a single location and a Coverage response.
	LocationID string
}

// FieldMeta describes one observable parameter.
type FieldMeta struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Unit  string `json:"x-ogc-unit"`
}

type FeatureCollection struct {
	Type           string      `json:"type"`
	Features       []Feature   `json:"features"`
	Parameters     []Parameter `json:"parameters"`
	NumberReturned int         `json:"numberReturned"`
}

type Feature struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type FeatureProperties struct {
	Datetime      string   `json:"datetime"`
	ParameterName []string `json:"parameter-name"`
}

// Parameter is the CoverageJSON parameter description.
type Parameter struct {
	ID               string           `json:"id"`
	Type             string           `json:"type"`
	Name             string           `json:"name"`
	ObservedProperty ObservedProperty `json:"observedProperty"`
	Unit             Unit             `json:"unit"`
}

type ObservedProperty struct {
	ID    string            `json:"id"`
	Label map[string]string `json:"label"`
}

type Unit struct {
	Label  map[string]string `json:"label"`
	Symbol Symbol            `json:"symbol"`
}

type Symbol struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

type Coverage struct {
	Type       string               `json:"type"`
	Domain     Domain               `json:"domain"`
	Parameters map[string]Parameter `json:"parameters"`
	Ranges     map[string]*NdArray  `json:"ranges"`
}

type Domain struct {
	Type        string                      `json:"type"`
	DomainType  string                      `json:"domainType"`
	Axes        Axes                        `json:"axes"`
	Referencing []ReferenceSystemConnection `json:"referencing"`
}

type Axes struct {
	X         *ValuesAxis    `json:"x,omitempty"`
	Y         *ValuesAxis    `json:"y,omitempty"`
	T         ValuesAxis     `json:"t"`
	Composite *CompositeAxis `json:"composite,omitempty"`
}

type ValuesAxis struct {
	Values []any `json:"values"`
}

// CompositeAxis carries a non-point geometry as a GeoJSON value.
type CompositeAxis struct {
	DataType    string            `json:"dataType"`
	Coordinates []string          `json:"coordinates"`
	Values      *geojson.Geometry `json:"values"`
}

type ReferenceSystemConnection struct {
	Coordinates []string        `json:"coordinates"`
	System      ReferenceSystem `json:"system"`
}

type ReferenceSystem struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Calendar string `json:"calendar,omitempty"`
}

// NdArray is one parameter's values along the time axis.
type NdArray struct {
	Type      string   `json:"type"`
	DataType  string   `json:"dataType"`
	AxisNames []string `json:"axisNames"`
	Shape     []int    `json:"shape"`
	Values    []any    `json:"values"`
}

var (
	geographicCRS = ReferenceSystemConnection{
		Coordinates: []string{"x", "y"},
		System: ReferenceSystem{
			Type: "GeographicCRS",
			ID:   "http://www.opengis.net/def/crs/OGC/1.3/CRS84",
		},
	}
	temporalRS = ReferenceSystemConnection{
		Coordinates: []string{"t"},
		System:      ReferenceSystem{Type: "TemporalRS", Calendar: "Gregorian"},
	}
)

const ucumUnitType = "http://www.opengis.net/def/uom/UCUM/"

func newParameter(id string, meta FieldMeta) Parameter {
	return Parameter{
		ID:   id,
		Type: "Parameter",
		Name: meta.Title,
		ObservedProperty: ObservedProperty{
			ID:    id,
			Label: map[string]string{"en": meta.Title},
		},
		Unit: Unit{
			Label:  map[string]string{"en": meta.Title},
			Symbol: Symbol{Value: meta.Unit, Type: ucumUnitType},
		},
	}
}
