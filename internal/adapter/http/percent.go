package http

import (
	"bytes"
	"strings"
)

const (
	unreservedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	subDelimChars   = "!$&'()*+,;="
	upperHex        = "0123456789ABCDEF"
)

var (
	// pathChars accepts pchar, '/' and the '%' of a percent triple.
	pathChars = charTable(unreservedChars, subDelimChars, ":@/%")
	// queryChars additionally accepts '?'.
	queryChars = charTable(unreservedChars, subDelimChars, ":@/?%")
	// unreservedTable lists bytes emitted verbatim by encodeComponent.
	unreservedTable = charTable(unreservedChars)
)

func charTable(sets ...string) (table [256]bool) {
	for _, set := range sets {
		for i := 0; i < len(set); i++ {
			table[set[i]] = true
		}
	}
	return table
}

// decodeState walks one UTF-8 character spelled as percent triples.
// $DECODE_PERCn_k expects byte k of an n-byte sequence.
type decodeState uint8

const (
	decodePerc decodeState = iota
	decodePerc2_2
	decodePerc3_2
	decodePerc3_3
	decodePerc4_2
	decodePerc4_3
	decodePerc4_4
	decodePercDone
	decodePercError
)

var decodeStateNames = [...]string{
	decodePerc:      "$DECODE_PERC",
	decodePerc2_2:   "$DECODE_PERC2_2",
	decodePerc3_2:   "$DECODE_PERC3_2",
	decodePerc3_3:   "$DECODE_PERC3_3",
	decodePerc4_2:   "$DECODE_PERC4_2",
	decodePerc4_3:   "$DECODE_PERC4_3",
	decodePerc4_4:   "$DECODE_PERC4_4",
	decodePercDone:  "$DECODE_PERC_DONE",
	decodePercError: "$DECODE_PERC_ERROR",
}

func (s decodeState) String() string {
	if int(s) < len(decodeStateNames) {
		return decodeStateNames[s]
	}
	return "$DECODE_UNKNOWN"
}

var decodeNext = [...]decodeState{
	decodePerc2_2: decodePercDone,
	decodePerc3_2: decodePerc3_3,
	decodePerc3_3: decodePercDone,
	decodePerc4_2: decodePerc4_3,
	decodePerc4_3: decodePerc4_4,
	decodePerc4_4: decodePercDone,
}

// decodePercent decodes the UTF-8 character whose bytes are spelled as
// percent triples starting at s[i]. It returns the decoded bytes, their
// count, and the number of source bytes consumed.
func decodePercent(s []byte, i int) (seq [4]byte, size int, n int, ok bool) {
	state := decodePerc
	lo, hi := byte(0x80), byte(0xBF)

	for {
		switch state {
		case decodePercDone:
			return seq, size, n, true
		case decodePercError:
			return seq, 0, 0, false
		}

		v, valid := percentTriple(s, i+n)
		if !valid {
			state = decodePercError
			continue
		}

		switch state {
		case decodePerc:
			switch {
			case v < 0x80:
				state = decodePercDone
			case v >= 0xC2 && v <= 0xDF:
				state = decodePerc2_2
			case v >= 0xE0 && v <= 0xEF:
				state = decodePerc3_2
				if v == 0xE0 {
					lo = 0xA0
				} else if v == 0xED {
					hi = 0x9F
				}
			case v >= 0xF0 && v <= 0xF4:
				state = decodePerc4_2
				if v == 0xF0 {
					lo = 0x90
				} else if v == 0xF4 {
					hi = 0x8F
				}
			default:
				state = decodePercError
				continue
			}
		default:
			if v < lo || v > hi {
				state = decodePercError
				continue
			}
			lo, hi = 0x80, 0xBF
			state = decodeNext[state]
		}

		seq[size] = v
		size++
		n += 3
	}
}

// percentTriple decodes "%XX" at s[i].
func percentTriple(s []byte, i int) (byte, bool) {
	if i+2 >= len(s) || s[i] != '%' {
		return 0, false
	}
	hi, ok1 := unhex(s[i+1])
	lo, ok2 := unhex(s[i+2])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeComponent percent-decodes raw. Malformed sequences are kept as
// literal text. plusAsSpace selects form/query semantics for '+'.
func decodeComponent(raw []byte, plusAsSpace bool) string {
	if bytes.IndexByte(raw, '%') < 0 && (!plusAsSpace || bytes.IndexByte(raw, '+') < 0) {
		return string(raw)
	}

	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); {
		c := raw[i]
		switch {
		case c == '+' && plusAsSpace:
			out = append(out, ' ')
			i++
		case c == '%':
			seq, size, n, ok := decodePercent(raw, i)
			if !ok {
				out = append(out, c)
				i++
				continue
			}
			out = append(out, seq[:size]...)
			i += n
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// encodeComponent percent-encodes every byte outside the unreserved set.
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedTable[c] {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0F])
	}
	return b.String()
}

// params holds decoded name/value pairs in first-seen name order.
type params struct {
	names  []string
	values map[string][]string
}

// parseParams splits raw on '&' and then on the first '='.
func parseParams(raw []byte) *params {
	p := &params{values: make(map[string][]string)}
	for len(raw) > 0 {
		var pair []byte
		pair, raw, _ = bytes.Cut(raw, []byte{'&'})
		if len(pair) == 0 {
			continue
		}
		name, value, _ := bytes.Cut(pair, []byte{'='})
		key := decodeComponent(name, true)
		if _, seen := p.values[key]; !seen {
			p.names = append(p.names, key)
		}
		p.values[key] = append(p.values[key], decodeComponent(value, true))
	}
	return p
}

func (p *params) lookup(name string) (string, bool) {
	values := p.values[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (p *params) all(name string) []string {
	values := p.values[name]
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}

func (p *params) nameList() []string {
	return append([]string(nil), p.names...)
}

func (p *params) toMap() map[string][]string {
	m := make(map[string][]string, len(p.values))
	for name, values := range p.values {
		m[name] = append([]string(nil), values...)
	}
	return m
}
