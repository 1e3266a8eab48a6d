package claim

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// AddressPart is one structured address holding administrative region codes.
type AddressPart struct {
	Detail     string `json:"detail"`
	Province   string `json:"province"`
	City       string `json:"city"`
	District   string `json:"district"`
	Village    string `json:"village"`
	PostalCode string `json:"postal_code"`
}

// Address is stored as text and/or structured parts. The wire form accepts a
// plain string, a list of parts or the stored object.
type Address struct {
	Text  string        `json:"text,omitempty"`
	Parts []AddressPart `json:"parts,omitempty"`
}

var errAddressShape = errors.New("address must be a string, a list of parts or an object")

func (a *Address) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Address{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Address{Text: strings.TrimSpace(s)}
	case '[':
		var parts []AddressPart
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		*a = Address{Parts: parts}
	case '{':
		type plain Address
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*a = Address(p)
	default:
		return errAddressShape
	}
	return nil
}

// IsZero reports whether the address holds nothing.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Text) == "" && len(a.Parts) == 0
}

// RegionKind selects the region level a code belongs to.
type RegionKind string

const (
	RegionProvince RegionKind = "province"
	RegionCity     RegionKind = "city"
	RegionDistrict RegionKind = "district"
	RegionVillage  RegionKind = "village"
)

// RegionNamer resolves region codes for display.
type RegionNamer interface {
	RegionName(kind RegionKind, code string) string
	PostalCode(villageCode string) string
}

// Render formats the address for display. Parts render as
// "detail, village, district, city, province, postal_code" and multiple
// parts are joined with " | ". Without a namer the codes are printed as-is.
func (a Address) Render(n RegionNamer) string {
	if len(a.Parts) == 0 {
		return strings.TrimSpace(a.Text)
	}
	lines := make([]string, 0, len(a.Parts))
	for _, p := range a.Parts {
		if line := p.render(n); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(a.Text)
	}
	return strings.Join(lines, " | ")
}

func (p AddressPart) render(n RegionNamer) string {
	name := func(kind RegionKind, code string) string {
		code = strings.TrimSpace(code)
		if n == nil || code == "" {
			return code
		}
		if v := n.RegionName(kind, code); v != "" {
			return v
		}
		return code
	}

	postal := strings.TrimSpace(p.PostalCode)
	if postal == "" && n != nil && strings.TrimSpace(p.Village) != "" {
		postal = n.PostalCode(strings.TrimSpace(p.Village))
	}

	segments := []string{
		strings.TrimSpace(p.Detail),
		name(RegionVillage, p.Village),
		name(RegionDistrict, p.District),
		name(RegionCity, p.City),
		name(RegionProvince, p.Province),
		postal,
	}
	kept := segments[:0]
	for _, s := range segments {
		if s == "" || s == "-" {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, ", ")
}
