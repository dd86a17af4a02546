package replication

import "strings"

type Scheme int

const (
	Invalid Scheme = iota
	None
	MasterSlave
	Dynamo
	ModC
)

var schemeNames = map[Scheme]string{
	Invalid:     "INVALID",
	None:        "NO_REPLICATION",
	MasterSlave: "MASTER_SLAVE",
	Dynamo:      "DYNAMO",
	ModC:        "MODC",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return "INVALID"
}

// ParseScheme maps a config file name to a Scheme. Unknown names give Invalid.
// "NONE" is accepted as an alias of NO_REPLICATION.
func ParseScheme(name string) Scheme {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "NONE" {
		return None
	}
	for s, n := range schemeNames {
		if n == name {
			return s
		}
	}
	return Invalid
}

func (s Scheme) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scheme) UnmarshalText(b []byte) error {
	*s = ParseScheme(string(b))
	return nil
}
