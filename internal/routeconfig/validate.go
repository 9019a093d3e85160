package routeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Field names a validated route or host field.
type Field string

const (
	FieldUpstreamPathTemplate   Field = keyUpstreamPathTemplate
	FieldDownstreamPathTemplate Field = keyDownstreamPathTemplate
	FieldHost                   Field = keyHost
	FieldPort                   Field = keyPort
)

const (
	MsgUpstreamRequired   = "Upstream path template is required."
	MsgDownstreamRequired = "Downstream path template is required."
	MsgHostRequired       = "Host is required."
	MsgPortPositive       = "Port must be greater than zero."
	MsgPortNotInteger     = "Port must be a whole number."

	MsgNoRoutes      = "Add at least one route before saving."
	MsgInvalidRoutes = "Some routes contain invalid data. Please correct highlighted fields."
)

// CheckUpstream and the other field checks return the user-facing message,
// or "" when the value is acceptable.
func CheckUpstream(s string) string {
	if strings.TrimSpace(s) == "" {
		return MsgUpstreamRequired
	}
	return ""
}

func CheckDownstream(s string) string {
	if strings.TrimSpace(s) == "" {
		return MsgDownstreamRequired
	}
	return ""
}

func CheckHost(s string) string {
	if strings.TrimSpace(s) == "" {
		return MsgHostRequired
	}
	return ""
}

func CheckPort(port int) string {
	if port <= 0 {
		return MsgPortPositive
	}
	return ""
}

// CheckPortText parses user input. Text that is not an integer is invalid,
// never an error.
func CheckPortText(text string) (int, string) {
	port, ok := ParsePort(text)
	if !ok {
		return 0, MsgPortNotInteger
	}
	return port, CheckPort(port)
}

func (h HostAndPort) Valid() bool {
	return CheckHost(h.Host) == "" && CheckPort(h.Port) == ""
}

// Valid reports whether the route can be persisted: both templates set and
// at least one usable host. Other hosts may still be incomplete.
func (r Route) Valid() bool {
	if CheckUpstream(r.UpstreamPathTemplate) != "" || CheckDownstream(r.DownstreamPathTemplate) != "" {
		return false
	}
	for _, h := range r.DownstreamHostAndPorts {
		if h.Valid() {
			return true
		}
	}
	return false
}

// Issue is one field-level finding. Host is -1 for route-level fields.
type Issue struct {
	Route   int
	Host    int
	Field   Field
	Message string
}

func (i Issue) String() string {
	if i.Host >= 0 {
		return fmt.Sprintf("routes[%d].%s[%d].%s: %s", i.Route, keyDownstreamHostAndPorts, i.Host, i.Field, i.Message)
	}
	return fmt.Sprintf("routes[%d].%s: %s", i.Route, i.Field, i.Message)
}

// RouteIssues lists every failing field of r, including hosts that do not
// by themselves make the route invalid.
func RouteIssues(index int, r Route) []Issue {
	var out []Issue
	if msg := CheckUpstream(r.UpstreamPathTemplate); msg != "" {
		out = append(out, Issue{Route: index, Host: -1, Field: FieldUpstreamPathTemplate, Message: msg})
	}
	if msg := CheckDownstream(r.DownstreamPathTemplate); msg != "" {
		out = append(out, Issue{Route: index, Host: -1, Field: FieldDownstreamPathTemplate, Message: msg})
	}
	for j, h := range r.DownstreamHostAndPorts {
		if msg := CheckHost(h.Host); msg != "" {
			out = append(out, Issue{Route: index, Host: j, Field: FieldHost, Message: msg})
		}
		if msg := CheckPort(h.Port); msg != "" {
			out = append(out, Issue{Route: index, Host: j, Field: FieldPort, Message: msg})
		}
	}
	if len(r.DownstreamHostAndPorts) == 0 {
		out = append(out, Issue{Route: index, Host: -1, Field: FieldHost, Message: MsgHostRequired})
	}
	return out
}

// ValidationError is the aggregate save-gate failure. Message is meant for a
// single dialog; Issues keeps the field-level detail for inline display.
type ValidationError struct {
	Message string
	Issues  []Issue
}

func (e *ValidationError) Error() string {
	return e.Message
}

// CheckDocument is the save gate: at least one route and every route valid.
// It returns nil or a *ValidationError.
func CheckDocument(doc *Document) error {
	if doc == nil || len(doc.Routes) == 0 {
		return &ValidationError{Message: MsgNoRoutes}
	}
	var issues []Issue
	invalid := false
	for i, r := range doc.Routes {
		if r.Valid() {
			continue
		}
		invalid = true
		issues = append(issues, RouteIssues(i, r)...)
	}
	if !invalid {
		return nil
	}
	return &ValidationError{Message: MsgInvalidRoutes, Issues: issues}
}

type ValidationResult struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate runs the save gate and folds parse warnings into the result.
func Validate(doc *Document, rep Report) ValidationResult {
	res := ValidationResult{OK: true, Warnings: append([]string(nil), rep.Warnings...)}
	err := CheckDocument(doc)
	if err == nil {
		return res
	}
	res.OK = false
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Issues) == 0 {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	for _, is := range ve.Issues {
		res.Errors = append(res.Errors, is.String())
	}
	return res
}

func FormatValidationJSON(res ValidationResult) (string, error) {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func FormatValidationText(res ValidationResult) string {
	if res.OK {
		if len(res.Warnings) == 0 {
			return "config ok"
		}
		return fmt.Sprintf("config ok (warnings: %d)", len(res.Warnings))
	}
	if len(res.Errors) == 0 {
		return "config invalid"
	}
	return fmt.Sprintf("config invalid: %s", res.Errors[0])
}
