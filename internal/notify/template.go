package notify

import (
	"strings"
)

// MissingTagPlaceholder is substituted for {tag[NAME]} when the event has no
// tag NAME. Rendering never fails because of a missing tag.
const MissingTagPlaceholder = "[NA]"

// TemplateError means the template itself is malformed: an unrecognized
// top-level name or broken braces. This is a configuration problem, reported
// at send time.
type TemplateError struct {
	Detail string
}

func (e *TemplateError) Error() string {
	return "notify: invalid template: " + e.Detail
}

// Vars are the named substitutions available to a message template.
type Vars struct {
	ProjectName string
	URL         string
	Title       string
	Message     string
	Tags        map[string]string
}

// Render substitutes {name} and {tag[KEY]} placeholders in template. Literal
// braces are written as {{ and }}.
func Render(template string, vars Vars) (string, error) {
	var b strings.Builder

	for i := 0; i < len(template); {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", &TemplateError{Detail: "unterminated placeholder"}
			}
			value, err := lookup(template[i+1:i+end], vars)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", &TemplateError{Detail: "unmatched '}'"}
		default:
			b.WriteByte(template[i])
			i++
		}
	}

	return b.String(), nil
}

func lookup(name string, vars Vars) (string, error) {
	if key, ok := strings.CutPrefix(name, "tag["); ok {
		key, ok = strings.CutSuffix(key, "]")
		if !ok {
			return "", &TemplateError{Detail: "malformed tag lookup: {" + name + "}"}
		}
		if value, present := vars.Tags[key]; present {
			return value, nil
		}
		return MissingTagPlaceholder, nil
	}

	switch name {
	case "project_name":
		return vars.ProjectName, nil
	case "url":
		return vars.URL, nil
	case "title":
		return vars.Title, nil
	case "message":
		return vars.Message, nil
	default:
		return "", &TemplateError{Detail: "unknown name: {" + name + "}"}
	}
}
