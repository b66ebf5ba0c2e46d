// File: internal/taskdata/context.go
package taskdata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContextResolution is returned when a template references a key the
// record context does not have.
var ErrContextResolution = errors.New("context resolution failed")

// Context is the name-normalized view of a record used for template
// substitution.
type Context map[string]string

// NormalizeKey lower-cases a header and replaces spaces with underscores.
func NormalizeKey(header string) string {
	return strings.ReplaceAll(strings.ToLower(header), " ", "_")
}

// BuildContext converts a record into its lookup context. "Subtask ID"
// becomes "subtask_id", "Value1" becomes "value1" and so on.
func BuildContext(r *Record) Context {
	if r == nil {
		return Context{}
	}
	fields := r.Fields()
	ctx := make(Context, len(fields))
	for k, v := range fields {
		ctx[NormalizeKey(k)] = v
	}
	return ctx
}

// MissingKeysError names every placeholder that could not be resolved.
type MissingKeysError struct {
	Template string
	Keys     []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("%s: template %q references missing keys [%s]",
		ErrContextResolution, e.Template, strings.Join(e.Keys, ", "))
}

func (e *MissingKeysError) Unwrap() error { return ErrContextResolution }

// Resolve substitutes every {key} placeholder in template with its value
// from ctx. "{{" and "}}" produce literal braces. Resolution fails closed:
// when any key is missing nothing is substituted and the error lists all of
// them in order of appearance.
func Resolve(template string, ctx Context) (string, error) {
	var (
		b       strings.Builder
		missing []string
		seen    = map[string]bool{}
	)
	for i := 0; i < len(template); i++ {
		ch := template[i]
		switch {
		case ch == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case ch == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated placeholder at offset %d in %q", ErrContextResolution, i, template)
			}
			key := template[i+1 : i+1+end]
			if v, ok := ctx[key]; ok {
				b.WriteString(v)
			} else if !seen[key] {
				seen[key] = true
				missing = append(missing, key)
			}
			i += end + 1
		default:
			b.WriteByte(ch)
		}
	}
	if len(missing) > 0 {
		return "", &MissingKeysError{Template: template, Keys: missing}
	}
	return b.String(), nil
}
