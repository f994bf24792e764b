// Package construct is the Constructor-form Pre/Post Codec (spec.md
// §4.8). It lets a raw-string query carry invalid-JSON constructor
// syntax — ISODate(...), ObjectId(...), Date(), NumberLong(...),
// NumberInt(...) — across a JSON parse: a textual rewrite turns
// N(ARGS) into the JSON-safe array form ["___N", ARGS] before
// parsing, and a bottom-up walk after parsing turns that array back
// into the real decoded value.
//
// The textual scan is a hand-rolled rune scanner in the style of the
// teacher's lib/logsql/jsonpath.go: a position index walked forward,
// string literals skipped wholesale so a constructor name never
// matches inside one, generalized here from JSON-path segments to
// balanced-paren constructor calls.
package construct

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/queryforge/mbql-mongo/lib/temporal"
)

// sentinelPrefix marks a decoded array's first element as a
// constructor call rather than ordinary query data.
const sentinelPrefix = "___"

// dateConstructorLayout is the format Date() renders the current
// instant with when called with no arguments, matching the document
// store shell's Date() string form.
const dateConstructorLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

var constructorNames = map[string]bool{
	"ISODate":    true,
	"ObjectId":   true,
	"Date":       true,
	"NumberLong": true,
	"NumberInt":  true,
}

// Now is overridable by tests; production code leaves it at time.Now.
var Now = time.Now

// Parse runs the full pipeline of §4.8 over text: pre-encode
// constructor calls, parse as JSON, decode the constructor sentinels
// back into their real values.
func Parse(text string) (any, error) {
	encoded, err := preEncode(text)
	if err != nil {
		return nil, fmt.Errorf("construct: pre-encoding %w", err)
	}
	var parsed any
	if err := json.Unmarshal([]byte(encoded), &parsed); err != nil {
		return nil, fmt.Errorf("construct: parsing pre-encoded query: %w", err)
	}
	return decode(parsed)
}

// preEncode rewrites every top-level N() / N(ARGS) call for a
// supported constructor name N into ["___N"] / ["___N", ARGS], outside
// string literals, recursing into ARGS so nested constructor calls
// are rewritten too.
func preEncode(text string) (string, error) {
	runes := []rune(text)
	var out strings.Builder
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			span, next, err := scanStringLiteral(runes, i)
			if err != nil {
				return "", err
			}
			out.WriteString(span)
			i = next
		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			name := string(runes[start:i])
			if constructorNames[name] && i < len(runes) && runes[i] == '(' {
				args, next, err := scanBalancedArgs(runes, i+1)
				if err != nil {
					return "", err
				}
				rewrittenArgs, err := preEncode(args)
				if err != nil {
					return "", err
				}
				out.WriteString(`["` + sentinelPrefix + name + `"`)
				if strings.TrimSpace(rewrittenArgs) != "" {
					out.WriteString(", ")
					out.WriteString(rewrittenArgs)
				}
				out.WriteString("]")
				i = next
				continue
			}
			out.WriteString(name)
		default:
			out.WriteRune(r)
			i++
		}
	}
	return out.String(), nil
}

// scanStringLiteral returns the literal (quotes included) starting at
// i, and the index just past its closing quote.
func scanStringLiteral(runes []rune, i int) (string, int, error) {
	quote := runes[i]
	start := i
	i++
	for i < len(runes) {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			i += 2
			continue
		}
		i++
		if r == quote {
			return string(runes[start:i]), i, nil
		}
	}
	return "", 0, fmt.Errorf("construct: unterminated string literal")
}

// scanBalancedArgs returns the text between a constructor's opening
// paren (already consumed; i points just past it) and its matching
// closing paren, and the index just past that closing paren.
func scanBalancedArgs(runes []rune, i int) (string, int, error) {
	start := i
	depth := 1
	for i < len(runes) {
		r := runes[i]
		if r == '"' || r == '\'' {
			_, next, err := scanStringLiteral(runes, i)
			if err != nil {
				return "", 0, err
			}
			i = next
			continue
		}
		if r == '(' {
			depth++
		} else if r == ')' {
			depth--
			if depth == 0 {
				return string(runes[start:i]), i + 1, nil
			}
		}
		i++
	}
	return "", 0, fmt.Errorf("construct: unterminated constructor call")
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// decode walks v bottom-up, replacing any non-empty array whose first
// element is a constructor sentinel (["___Date"] has no arguments) with the decoded
// value the corresponding constructor produces.
func decode(v any) (any, error) {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			d, err := decode(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		if len(out) >= 1 {
			if tag, ok := out[0].(string); ok && strings.HasPrefix(tag, sentinelPrefix) {
				name := strings.TrimPrefix(tag, sentinelPrefix)
				if dec, ok := decoders[name]; ok {
					return dec(out[1:])
				}
			}
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			d, err := decode(val)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	default:
		return v, nil
	}
}

var decoders = map[string]func(args []any) (any, error){
	"ISODate":    decodeISODate,
	"ObjectId":   decodeObjectID,
	"Date":       decodeDate,
	"NumberLong": decodeNumberLong,
	"NumberInt":  decodeNumberInt,
}

func decodeISODate(args []any) (any, error) {
	s, err := argString(args, 0, "ISODate")
	if err != nil {
		return nil, err
	}
	t, err := temporal.ParseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("construct: ISODate(%q): %w", s, err)
	}
	return primitive.NewDateTimeFromTime(t), nil
}

func decodeObjectID(args []any) (any, error) {
	hex, err := argString(args, 0, "ObjectId")
	if err != nil {
		return nil, err
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, fmt.Errorf("construct: ObjectId(%q): %w", hex, err)
	}
	return id, nil
}

func decodeDate(args []any) (any, error) {
	if len(args) == 0 {
		return Now().UTC().Format(dateConstructorLayout), nil
	}
	s, err := argString(args, 0, "Date")
	if err != nil {
		return nil, err
	}
	t, err := temporal.ParseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("construct: Date(%q): %w", s, err)
	}
	return primitive.NewDateTimeFromTime(t), nil
}

func decodeNumberLong(args []any) (any, error) {
	n, err := argNumber(args, 0, "NumberLong")
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("construct: NumberLong(%q): %w", n, err)
	}
	return v, nil
}

func decodeNumberInt(args []any) (any, error) {
	n, err := argNumber(args, 0, "NumberInt")
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseInt(n, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("construct: NumberInt(%q): %w", n, err)
	}
	return int32(v), nil
}

func argString(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("construct: %s requires a string argument", name)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("construct: %s argument must be a string, got %T", name, args[i])
	}
	return s, nil
}

// argNumber accepts either a JSON numeric literal (decoded as
// float64) or a quoted numeric string, since NumberLong/NumberInt are
// routinely called both ways in the wild.
func argNumber(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("construct: %s requires a numeric argument", name)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("construct: %s argument must be numeric, got %T", name, args[i])
	}
}
