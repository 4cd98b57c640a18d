package geo

import (
	"fmt"

	"github.com/airbusgeo/godal"
)

// Record holds the attribute values of one feature, keyed by field name.
// Values are int64, float64 or string.
type Record map[string]any

// Float returns a numeric field as float64.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns a numeric field as int.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// String returns a field as string. Empty strings count as absent.
func (r Record) String(key string) (string, bool) {
	switch v := r[key].(type) {
	case string:
		return v, v != ""
	case int64:
		return fmt.Sprint(v), true
	case float64:
		return fmt.Sprint(v), true
	}
	return "", false
}

// ReadLayer returns the attributes of every feature in a vector layer.
func ReadLayer(path, layer string) ([]Record, error) {
	Init()
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	defer ds.Close()

	l := ds.LayerByName(layer)
	if l == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoLayer, layer, path)
	}
	l.ResetReading()

	var out []Record
	for {
		feat := l.NextFeature()
		if feat == nil {
			break
		}
		rec := Record{}
		for name, field := range feat.Fields() {
			switch field.Type() {
			case godal.FTInt, godal.FTInt64:
				rec[name] = field.Int()
			case godal.FTReal:
				rec[name] = field.Float()
			default:
				rec[name] = field.String()
			}
		}
		feat.Close()
		out = append(out, rec)
	}
	return out, nil
}
