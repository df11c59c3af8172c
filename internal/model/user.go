package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// User is the context an evaluation runs against: three well-known
// attributes plus arbitrary custom attributes of type string, number,
// time.Time or string slice.
type User struct {
	Identifier string         `json:"Identifier"`
	Email      string         `json:"Email,omitempty"`
	Country    string         `json:"Country,omitempty"`
	Custom     map[string]any `json:"Custom,omitempty"`
}

// Attribute looks up an attribute by name. Well-known attribute names take
// precedence over custom entries. The second return value is false when the
// attribute is absent or the well-known slot is empty.
func (u *User) Attribute(name string) (any, bool) {
	if u == nil {
		return nil, false
	}
	switch name {
	case "Identifier":
		if u.Identifier == "" {
			return nil, false
		}
		return u.Identifier, true
	case "Email":
		if u.Email == "" {
			return nil, false
		}
		return u.Email, true
	case "Country":
		if u.Country == "" {
			return nil, false
		}
		return u.Country, true
	}
	if u.Custom == nil {
		return nil, false
	}
	v, ok := u.Custom[name]
	return v, ok
}

// String renders the user as a compact attribute listing for traces and
// error messages. Attribute order is stable.
func (u *User) String() string {
	if u == nil {
		return "<nil>"
	}
	attrs := map[string]any{"Identifier": u.Identifier}
	if u.Email != "" {
		attrs["Email"] = u.Email
	}
	if u.Country != "" {
		attrs["Country"] = u.Country
	}
	for k, v := range u.Custom {
		if _, taken := attrs[k]; !taken {
			attrs[k] = v
		}
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		blob, _ := json.Marshal(attrs[k])
		sb.WriteByte('"')
		sb.WriteString(k)
		sb.WriteString(`": `)
		sb.Write(blob)
	}
	sb.WriteByte('}')
	return sb.String()
}
