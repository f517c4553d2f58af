package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/flip-estimator/internal/geo"
	"github.com/sells-group/flip-estimator/internal/model"
)

// Field identifies a comparable attribute a column can map to.
type Field string

// Recognised fields.
const (
	FieldID          Field = "id"
	FieldLat         Field = "lat"
	FieldLon         Field = "lon"
	FieldSurface     Field = "surface"
	FieldRooms       Field = "rooms"
	FieldBathrooms   Field = "bathrooms"
	FieldFloor       Field = "floor"
	FieldExterior    Field = "exterior"
	FieldElevator    Field = "elevator"
	FieldBuildYear   Field = "build_year"
	FieldCondition   Field = "condition"
	FieldZone        Field = "zone"
	FieldPrice       Field = "price"
	FieldPricePerM2  Field = "price_per_m2"
	FieldSaleDate    Field = "sale_date"
	FieldReformed    Field = "reformed"
	FieldReliability Field = "reliability"
	FieldSource      Field = "source"
)

// headerAliases maps normalised header text to a field. Headers are
// lower-cased, accent-stripped and have separators collapsed to "_".
var headerAliases = map[string]Field{
	"id": FieldID, "ref": FieldID, "referencia": FieldID,
	"lat": FieldLat, "latitude": FieldLat, "latitud": FieldLat,
	"lon": FieldLon, "lng": FieldLon, "longitude": FieldLon, "longitud": FieldLon,
	"surface": FieldSurface, "superficie": FieldSurface, "m2": FieldSurface, "metros": FieldSurface, "area": FieldSurface,
	"rooms": FieldRooms, "habitaciones": FieldRooms, "dormitorios": FieldRooms,
	"bathrooms": FieldBathrooms, "banos": FieldBathrooms, "aseos": FieldBathrooms,
	"floor": FieldFloor, "planta": FieldFloor, "piso": FieldFloor,
	"exterior": FieldExterior,
	"elevator": FieldElevator, "ascensor": FieldElevator,
	"build_year": FieldBuildYear, "year_built": FieldBuildYear, "ano_construccion": FieldBuildYear, "anio_construccion": FieldBuildYear,
	"condition": FieldCondition, "estado": FieldCondition,
	"zone": FieldZone, "zona": FieldZone, "barrio": FieldZone, "distrito": FieldZone,
	"price": FieldPrice, "precio": FieldPrice, "precio_venta": FieldPrice, "sale_price": FieldPrice,
	"price_per_m2": FieldPricePerM2, "precio_m2": FieldPricePerM2, "eur_m2": FieldPricePerM2,
	"sale_date": FieldSaleDate, "fecha_venta": FieldSaleDate, "fecha": FieldSaleDate, "date": FieldSaleDate,
	"reformed": FieldReformed, "reformado": FieldReformed,
	"reliability": FieldReliability, "fiabilidad": FieldReliability,
	"source": FieldSource, "fuente": FieldSource, "origen": FieldSource,
}

// Mapping resolves column positions for each recognised field.
type Mapping map[Field]int

// NewMapping builds a Mapping from a header row. Unknown columns are ignored.
// Price (or price per m²), surface and sale date are required.
func NewMapping(header []string) (Mapping, error) {
	m := make(Mapping)
	for i, h := range header {
		if f, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := m[f]; !dup {
				m[f] = i
			}
		}
	}

	var missing []string
	if _, ok := m[FieldSurface]; !ok {
		missing = append(missing, string(FieldSurface))
	}
	if _, ok := m[FieldSaleDate]; !ok {
		missing = append(missing, string(FieldSaleDate))
	}
	_, hasPrice := m[FieldPrice]
	_, hasPPM := m[FieldPricePerM2]
	if !hasPrice && !hasPPM {
		missing = append(missing, "price|price_per_m2")
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("ingest: missing required columns: %s", strings.Join(missing, ", "))
	}
	return m, nil
}

func normalizeHeader(h string) string {
	h, _, _ = strings.Cut(h, "(")
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(stripAccents, strings.TrimSpace(h))
	if err != nil {
		s = h
	}
	s = cases.Lower(language.Und).String(s)
	s = strings.NewReplacer(" ", "_", "-", "_", ".", "", "/", "_", "€", "eur", "²", "2").Replace(s)
	return strings.Trim(s, "_")
}

// RowError describes a data row that could not be converted.
type RowError struct {
	Row int // 1-based, header is row 1
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

// Result is the outcome of parsing an export.
type Result struct {
	Comparables []model.Comparable
	Skipped     []RowError
}

// Parse converts rows (header first) into comparables. Rows that fail to
// parse are skipped and reported; blank rows are ignored. source is used
// when the file has no source column.
func Parse(rows [][]string, source string) (*Result, error) {
	if len(rows) == 0 {
		return nil, eris.New("ingest: empty input")
	}
	m, err := NewMapping(rows[0])
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		c, err := m.Comparable(row, source)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Row: i + 2, Err: err})
			continue
		}
		res.Comparables = append(res.Comparables, c)
	}

	if len(res.Skipped) > 0 {
		zap.L().Warn("ingest: skipped rows",
			zap.Int("skipped", len(res.Skipped)),
			zap.Int("parsed", len(res.Comparables)),
		)
	}
	return res, nil
}

// Comparable converts a single data row.
func (m Mapping) Comparable(row []string, source string) (model.Comparable, error) {
	get := func(f Field) string {
		i, ok := m[f]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var c model.Comparable
	var err error

	if c.Surface, err = parseNumber(get(FieldSurface)); err != nil || c.Surface <= 0 {
		return c, eris.Errorf("invalid surface %q", get(FieldSurface))
	}
	if c.SaleDate, err = parseDate(get(FieldSaleDate)); err != nil {
		return c, err
	}

	if v := get(FieldPrice); v != "" {
		if c.Price, err = parseNumber(v); err != nil {
			return c, eris.Errorf("invalid price %q", v)
		}
	}
	if v := get(FieldPricePerM2); v != "" {
		if c.PricePerArea, err = parseNumber(v); err != nil {
			return c, eris.Errorf("invalid price per m2 %q", v)
		}
	}
	switch {
	case c.PricePerArea <= 0 && c.Price > 0:
		c.PricePerArea = c.Price / c.Surface
	case c.Price <= 0 && c.PricePerArea > 0:
		c.Price = c.PricePerArea * c.Surface
	}
	if c.Price <= 0 || c.PricePerArea <= 0 {
		return c, eris.New("missing price")
	}

	lat, lon := get(FieldLat), get(FieldLon)
	if lat != "" && lon != "" {
		la, errLat := parseNumber(lat)
		lo, errLon := parseNumber(lon)
		if errLat == nil && errLon == nil {
			p := geo.Point{Lat: la, Lon: lo}
			if p.Valid() {
				c.Location = &p
			}
		}
	}

	if c.Rooms, err = optionalInt(get(FieldRooms)); err != nil {
		return c, eris.Wrap(err, "rooms")
	}
	if c.Bathrooms, err = optionalInt(get(FieldBathrooms)); err != nil {
		return c, eris.Wrap(err, "bathrooms")
	}
	if c.Floor, err = parseFloor(get(FieldFloor)); err != nil {
		return c, eris.Wrap(err, "floor")
	}
	if c.BuildYear, err = optionalInt(get(FieldBuildYear)); err != nil {
		return c, eris.Wrap(err, "build year")
	}

	c.Exterior = parseBool(get(FieldExterior))
	c.Elevator = parseBool(get(FieldElevator))
	c.WasReformed = parseBool(get(FieldReformed))
	c.Condition = strings.ToLower(get(FieldCondition))
	c.Zone = NormalizeZone(get(FieldZone))

	c.Reliability = 1
	if v := get(FieldReliability); v != "" {
		r, err := parseNumber(v)
		if err != nil || r < 0 || r > 1 {
			return c, eris.Errorf("invalid reliability %q", v)
		}
		c.Reliability = r
	}

	c.Source = get(FieldSource)
	if c.Source == "" {
		c.Source = source
	}
	c.ID = get(FieldID)
	if c.ID == "" {
		c.ID = derivedID(c)
	}
	return c, nil
}

// NormalizeZone upper-cases and trims a zone name so that lookups match.
func NormalizeZone(z string) string {
	return strings.ToUpper(strings.Join(strings.Fields(z), " "))
}

// derivedID gives rows without an explicit ID a stable identifier, so that
// re-importing the same export upserts instead of duplicating.
func derivedID(c model.Comparable) string {
	key := fmt.Sprintf("%s|%.2f|%.2f|%s|%s", c.Source, c.Surface, c.Price, c.SaleDate.Format("2006-01-02"), c.Zone)
	if c.Location != nil {
		key += fmt.Sprintf("|%.6f|%.6f", c.Location.Lat, c.Location.Lon)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseNumber accepts plain numbers, thousands separators and decimal
// commas ("1.234,5", "1,234.5", "185.000 €"). A single separator followed by
// exactly three digits is read as a thousands separator.
func parseNumber(s string) (float64, error) {
	s = strings.NewReplacer("€", "", "EUR", "", " ", "", "\u00a0", "", "m²", "", "m2", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, eris.New("empty number")
	}
	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case lastDot >= 0 && len(s)-lastDot-1 == 3 && strings.TrimLeft(s[:lastDot], "-") != "0":
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("invalid number %q", s)
	}
	return f, nil
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	f, err := parseNumber(s)
	if err != nil {
		return nil, eris.Errorf("invalid integer %q", s)
	}
	return model.IntPtr(int(f)), nil
}

// parseFloor understands the usual ground-floor labels.
func parseFloor(s string) (*int, error) {
	switch strings.ToLower(s) {
	case "bajo", "bj", "b", "pb", "ground", "entresuelo", "en":
		return model.IntPtr(0), nil
	}
	s = strings.TrimRight(strings.ToLower(s), "ºª°")
	return optionalInt(s)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "si", "sí", "s", "x":
		return true
	}
	return false
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"01-02-06",
}

// parseDate accepts ISO dates, day-first Spanish dates and Excel serials.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, eris.New("missing sale date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 1 && f < 100000 {
		return xlsx.TimeFromExcelTime(f, false).UTC().Truncate(24 * time.Hour), nil
	}
	return time.Time{}, eris.Errorf("invalid sale date %q", s)
}
