package http

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// SameSite values for Cookie.SameSite.
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// ErrInvalidCookie reports a cookie name, value or attribute that cannot be
// written to a Set-Cookie header.
var ErrInvalidCookie = errors.New("http: invalid cookie")

// cookieOctets is the RFC 6265 cookie-octet set.
var cookieOctets = func() (table [256]bool) {
	for c := 0x21; c < 0x7F; c++ {
		switch c {
		case '"', ',', ';', '\\':
			continue
		}
		table[c] = true
	}
	return table
}()

// Cookie describes a Set-Cookie header. Value must consist of cookie-octets. Attributes are written in
// alphabetical order. MaxAge > 0 sets Max-Age and MaxAge < 0 writes
// Max-Age=0.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Expires  time.Time
	HttpOnly bool
	MaxAge   int
	Path     string
	SameSite string
	Secure   bool
}

// String renders the header value.
func (c *Cookie) String() (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(imfFixdate))
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	return b.String(), nil
}

func (c *Cookie) validate() error {
	if c.Name == "" {
		return ErrInvalidCookie
	}
	for i := 0; i < len(c.Name); i++ {
		if !tokenChars[c.Name[i]] {
			return ErrInvalidCookie
		}
	}
	for i := 0; i < len(c.Value); i++ {
		if !cookieOctets[c.Value[i]] {
			return ErrInvalidCookie
		}
	}
	for _, attr := range []string{c.Domain, c.Path} {
		for i := 0; i < len(attr); i++ {
			if b := attr[i]; b < 0x20 || b > 0x7E || b == ';' {
				return ErrInvalidCookie
			}
		}
	}
	if !c.Expires.IsZero() && c.Expires.UTC().Year() < 1601 {
		return ErrInvalidCookie
	}
	switch c.SameSite {
	case "", SameSiteStrict, SameSiteLax, SameSiteNone:
	default:
		return ErrInvalidCookie
	}
	return nil
}

// Cookies is the set of cookies sent with a request. Only the first value of
// a repeated name is kept.
type Cookies struct {
	names  []string
	values map[string]string
}

// Get returns the value of the named cookie, or "".
func (c Cookies) Get(name string) string {
	return c.values[name]
}

// Lookup returns the value of the named cookie and whether it was sent.
func (c Cookies) Lookup(name string) (string, bool) {
	value, ok := c.values[name]
	return value, ok
}

// Names returns cookie names in the order they were sent.
func (c Cookies) Names() []string {
	return append([]string(nil), c.names...)
}

// Len reports the number of distinct cookies.
func (c Cookies) Len() int {
	return len(c.names)
}

// ParseCookies parses a Cookie request header value. Pairs are separated by
// ';', surrounding OWS is trimmed and the name ends at the first '='. Pairs
// without '=' or with an empty name are skipped. A blank header yields an
// empty set.
func ParseCookies(header string) Cookies {
	var cookies Cookies
	cookies.addFrom(header)
	return cookies
}

func (c *Cookies) addFrom(header string) {
	for header != "" {
		var pair string
		pair, header, _ = strings.Cut(header, ";")
		name, value, ok := strings.Cut(strings.Trim(pair, " \t"), "=")
		name = strings.Trim(name, " \t")
		if !ok || name == "" {
			continue
		}
		value = strings.Trim(value, " \t")
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		if c.values == nil {
			c.values = make(map[string]string)
		}
		if _, seen := c.values[name]; seen {
			continue
		}
		c.names = append(c.names, name)
		c.values[name] = value
	}
}

// Cookies parses every Cookie header of the request in arrival order.
func (x *Exchange) Cookies() Cookies {
	x.checkRequest()
	var cookies Cookies
	for idx := x.headers.lookup("cookie"); idx >= 0; idx = x.headers.fields[idx].next {
		cookies.addFrom(string(x.headerBytes(idx)))
	}
	return cookies
}
