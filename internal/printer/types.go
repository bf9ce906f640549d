package printer

import (
	"fmt"
	"strings"
)

// Printer is one registered printer.
type Printer struct {
	Serial     string `json:"serial"`
	AccessCode string `json:"access_code"`
	IP         string `json:"ip"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
}

// DefaultName is the name given to a printer registered without one.
func DefaultName(serial string) string {
	return "Printer " + serial
}

// Normalise trims whitespace and fills the default name.
func (p *Printer) Normalise() {
	p.Serial = strings.TrimSpace(p.Serial)
	p.AccessCode = strings.TrimSpace(p.AccessCode)
	p.IP = strings.TrimSpace(p.IP)
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" && p.Serial != "" {
		p.Name = DefaultName(p.Serial)
	}
}

// Validate checks the fields needed to reach the printer. The name doubles
// as a directory name for the certificate store, so path separators and
// dot names are rejected.
func (p Printer) Validate() error {
	var missing []string
	if p.Serial == "" {
		missing = append(missing, "serial")
	}
	if p.AccessCode == "" {
		missing = append(missing, "access_code")
	}
	if p.IP == "" {
		missing = append(missing, "ip")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidPrinter, strings.Join(missing, ", "))
	}

	if strings.ContainsAny(p.Serial, "/#+") {
		return fmt.Errorf("%w: serial %q contains MQTT topic characters", ErrInvalidPrinter, p.Serial)
	}
	if p.Name == "." || p.Name == ".." || strings.ContainsAny(p.Name, `/\`+"\x00") {
		return fmt.Errorf("%w: name %q cannot be used as a directory name", ErrInvalidPrinter, p.Name)
	}
	return nil
}

// String omits the access code so records can be logged.
func (p Printer) String() string {
	return fmt.Sprintf("%s (%s @ %s, active=%t)", p.Name, p.Serial, p.IP, p.Active)
}
