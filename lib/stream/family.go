package stream

import (
	"encoding/json"
	"net"
)

// Family is the address family a stream was established with
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
)

// String returns the string representation of a Family
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes a Family as its string form
func (f Family) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON parses the string form of a Family
func (f *Family) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "ipv4":
		*f = FamilyIPv4
	case "ipv6":
		*f = FamilyIPv6
	default:
		*f = FamilyUnknown
	}
	return nil
}

// network returns the dial network for the family
func (f Family) network() string {
	switch f {
	case FamilyIPv4:
		return "tcp4"
	case FamilyIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

// familyOf returns the family of an IP address
func familyOf(ip net.IP) Family {
	if ip == nil {
		return FamilyUnknown
	}
	if ip.To4() != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}
