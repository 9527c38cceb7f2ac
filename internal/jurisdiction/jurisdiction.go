// Package jurisdiction holds the closed set of jurisdictions that have a
// passage index, and the name of the index backing each one.
package jurisdiction

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknown = errors.New("unknown jurisdiction")

type Jurisdiction int

const (
	Maharashtra Jurisdiction = iota + 1
	Gujarat
	Uttarakhand
	Central
	Jharkhand
	Karnataka
	UttarPradesh
)

type entry struct {
	name  string
	index string
}

var table = map[Jurisdiction]entry{
	Maharashtra:  {name: "Maharashtra", index: "maha_ada"},
	Gujarat:      {name: "Gujarat", index: "guj_ada"},
	Uttarakhand:  {name: "Uttarakhand", index: "uk_ada"},
	Central:      {name: "Central", index: "cen_ada"},
	Jharkhand:    {name: "Jharkhand", index: "jha_ada"},
	Karnataka:    {name: "Karnataka", index: "ka_ada"},
	UttarPradesh: {name: "Uttar Pradesh", index: "up_ada"},
}

// aliases maps lower-cased spellings seen in user input and model output.
var aliases = map[string]Jurisdiction{
	"maharashtra":   Maharashtra,
	"gujarat":       Gujarat,
	"uttarakhand":   Uttarakhand,
	"uttrakhand":    Uttarakhand,
	"uttaranchal":   Uttarakhand,
	"central":       Central,
	"centre":        Central,
	"center":        Central,
	"central code":  Central,
	"union":         Central,
	"jharkhand":     Jharkhand,
	"karnataka":     Karnataka,
	"uttar pradesh": UttarPradesh,
	"uttarpradesh":  UttarPradesh,
	"up":            UttarPradesh,
}

// All returns every jurisdiction in declaration order.
func All() []Jurisdiction {
	return []Jurisdiction{Maharashtra, Gujarat, Uttarakhand, Central, Jharkhand, Karnataka, UttarPradesh}
}

// Parse resolves a display name or alias. Unknown names wrap ErrUnknown.
func Parse(name string) (Jurisdiction, error) {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if j, ok := aliases[key]; ok {
		return j, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// Valid reports whether j is one of the declared jurisdictions.
func (j Jurisdiction) Valid() bool {
	_, ok := table[j]
	return ok
}

func (j Jurisdiction) String() string {
	if e, ok := table[j]; ok {
		return e.name
	}
	return fmt.Sprintf("Jurisdiction(%d)", int(j))
}

// IndexName is the on-disk name of the passage index for j.
func (j Jurisdiction) IndexName() string {
	return table[j].index
}

// MarshalText encodes j by display name.
func (j Jurisdiction) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(j))
	}
	return []byte(j.String()), nil
}

// UnmarshalText accepts any name Parse accepts.
func (j *Jurisdiction) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
