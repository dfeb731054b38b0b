package model

import "fmt"

// FuelType identifies a fuel traded and burned by the fleet.
type FuelType int

const (
	FuelLNG FuelType = iota
	FuelBunker
	FuelDiesel
)

var fuelNames = map[FuelType]string{
	FuelLNG:    "lng",
	FuelBunker: "bunker",
	FuelDiesel: "diesel",
}

// String returns the lowercase name used in configuration and serialized output.
func (f FuelType) String() string {
	if n, ok := fuelNames[f]; ok {
		return n
	}
	return fmt.Sprintf("fuel(%d)", int(f))
}

// ParseFuelType converts a configuration string into a FuelType.
func ParseFuelType(s string) (FuelType, error) {
	for f, n := range fuelNames {
		if n == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown fuel type %q", s)
}

// MarshalText implements encoding.TextMarshaler so fuel types appear by name
// in JSON and YAML documents.
func (f FuelType) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FuelType) UnmarshalText(b []byte) error {
	ft, err := ParseFuelType(string(b))
	if err != nil {
		return err
	}
	*f = ft
	return nil
}
