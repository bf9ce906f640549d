package filament

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Default values used when a filament is sent to a printer without them.
const (
	DefaultTempMin = 220
	DefaultTempMax = 240
	DefaultColor   = "000000FF"
)

// Filament is one spool type in the catalogue.
type Filament struct {
	FCID         string  `json:"fcid"`
	Material     string  `json:"material"`
	PrintProfile string  `json:"print_profile"`
	Color        string  `json:"color"`
	Manufacturer string  `json:"manufacturer"`
	Price        float64 `json:"price"`
	TempMin      int     `json:"temp_min"`
	TempMax      int     `json:"temp_max"`
}

// Validate requires every descriptive field and a sane temperature range.
func (f Filament) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Material) == "" {
		missing = append(missing, "material")
	}
	if strings.TrimSpace(f.PrintProfile) == "" {
		missing = append(missing, "print_profile")
	}
	if strings.TrimSpace(f.Color) == "" {
		missing = append(missing, "color")
	}
	if strings.TrimSpace(f.Manufacturer) == "" {
		missing = append(missing, "manufacturer")
	}
	if f.Price <= 0 {
		missing = append(missing, "price")
	}
	if f.TempMin <= 0 {
		missing = append(missing, "temp_min")
	}
	if f.TempMax <= 0 {
		missing = append(missing, "temp_max")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidFilament, strings.Join(missing, ", "))
	}
	if f.TempMin > f.TempMax {
		return fmt.Errorf("%w: temp_min %d above temp_max %d", ErrInvalidFilament, f.TempMin, f.TempMax)
	}
	return nil
}

// NozzleRange returns the temperature bounds sent to the printer, falling
// back to the defaults for unset values.
func (f Filament) NozzleRange() (low, high int) {
	low, high = f.TempMin, f.TempMax
	if low <= 0 {
		low = DefaultTempMin
	}
	if high <= 0 {
		high = DefaultTempMax
	}
	return low, high
}

// TrayColor returns the colour sent to the printer.
func (f Filament) TrayColor() string {
	if c := strings.TrimPrefix(strings.TrimSpace(f.Color), "#"); c != "" {
		return strings.ToUpper(c)
	}
	return DefaultColor
}

// wireFilament accepts both current and legacy keys.
type wireFilament struct {
	FCID         string    `json:"fcid"`
	Material     string    `json:"material"`
	PrintProfile string    `json:"print_profile"`
	Color        string    `json:"color"`
	Manufacturer string    `json:"manufacturer"`
	Price        flexFloat `json:"price"`
	TempMin      flexFloat `json:"temp_min"`
	TempMax      flexFloat `json:"temp_max"`

	LegacyProfile      string    `json:"druckprofil"`
	LegacyColor        string    `json:"farbe"`
	LegacyManufacturer string    `json:"hersteller"`
	LegacyPrice        flexFloat `json:"preis"`
	CamelTempMin       flexFloat `json:"tempMin"`
	CamelTempMax       flexFloat `json:"tempMax"`
}

// UnmarshalJSON decodes current and legacy catalogue entries.
func (f *Filament) UnmarshalJSON(data []byte) error {
	var w wireFilament
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*f = Filament{
		FCID:         w.FCID,
		Material:     w.Material,
		PrintProfile: firstNonEmpty(w.PrintProfile, w.LegacyProfile),
		Color:        firstNonEmpty(w.Color, w.LegacyColor),
		Manufacturer: firstNonEmpty(w.Manufacturer, w.LegacyManufacturer),
		Price:        float64(firstNonZero(w.Price, w.LegacyPrice)),
		TempMin:      int(firstNonZero(w.TempMin, w.CamelTempMin)),
		TempMax:      int(firstNonZero(w.TempMax, w.CamelTempMax)),
	}
	return nil
}

// flexFloat decodes a JSON number or a numeric string.
type flexFloat float64

func (v *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*v = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.Replace(s, ",", ".", 1)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*v = flexFloat(f)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...flexFloat) flexFloat {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
