package registration

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
)

const discordIDPattern = `^\d{17,19}$`

// document is a JSON payload compiled against a schema. Object members are
// walked here so failures carry a field path; scalar constraints are left to
// the resolved leaf schemas.
type document struct {
	root   *jsonschema.Schema
	leaves map[*jsonschema.Schema]*jsonschema.Resolved
}

func mustCompile(root *jsonschema.Schema) *document {
	d := &document{root: root, leaves: map[*jsonschema.Schema]*jsonschema.Resolved{}}
	var walk func(s *jsonschema.Schema)
	walk = func(s *jsonschema.Schema) {
		if isObjectSchema(s) {
			for _, prop := range s.Properties {
				walk(prop)
			}
			return
		}
		resolved, err := s.Resolve(nil)
		if err != nil {
			panic(fmt.Sprintf("registration: resolve schema: %v", err))
		}
		d.leaves[s] = resolved
	}
	walk(root)
	return d
}

// Validate checks a decoded JSON value (as produced by json.Unmarshal into any).
func (d *document) Validate(value any) error {
	return d.validate("", d.root, value)
}

func (d *document) validate(path string, s *jsonschema.Schema, value any) error {
	if !isObjectSchema(s) {
		if err := d.leaves[s].Validate(value); err != nil {
			return &SchemaValidationError{Path: path, Reason: "invalid value", Err: err}
		}
		return nil
	}
	if value == nil && allowsNull(s) {
		return nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return &SchemaValidationError{Path: path, Reason: fmt.Sprintf("expected object, got %s", jsonKind(value))}
	}
	for _, name := range s.Required {
		if _, ok := obj[name]; !ok {
			return &SchemaValidationError{Path: joinPath(path, name), Reason: "required field missing"}
		}
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, ok := obj[name]
		if !ok {
			continue
		}
		if err := d.validate(joinPath(path, name), s.Properties[name], v); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses body, validates it, and returns the top-level members.
func (d *document) Decode(body []byte) (map[string]json.RawMessage, error) {
	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, &SchemaValidationError{Reason: "malformed JSON", Err: err}
	}
	if err := d.Validate(tree); err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &SchemaValidationError{Reason: "expected object", Err: err}
	}
	return fields, nil
}

func isObjectSchema(s *jsonschema.Schema) bool {
	return s.Type == "object" || slices.Contains(s.Types, "object")
}

func allowsNull(s *jsonschema.Schema) bool {
	return s.Type == "null" || slices.Contains(s.Types, "null")
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func intPtr(n int) *int { return &n }

func stringSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }

func nullable(kind string) *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{kind, "null"}}
}

func discordIDSchema(allowNull bool) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "string", Pattern: discordIDPattern}
	if allowNull {
		s = &jsonschema.Schema{Types: []string{"string", "null"}, Pattern: discordIDPattern}
	}
	return s
}

func passthroughSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{"object", "null"}}
}

func athleteSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Types:    []string{"object", "null"},
		Required: []string{"first_name", "last_name", "created", "modified"},
		Properties: map[string]*jsonschema.Schema{
			"first_name": stringSchema(),
			"last_name":  stringSchema(),
			"usac_id":    nullable("integer"),
			"uci_id":     nullable("integer"),
			"zwift_id":   nullable("integer"),
			"strava_id":  nullable("integer"),
			"discord_id": discordIDSchema(true),
			"ids":        passthroughSchema(),
			"created":    stringSchema(),
			"modified":   stringSchema(),
		},
	}
}

func racingStatsSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Types:    []string{"object", "null"},
		Required: []string{"riderId", "created", "modified"},
		Properties: map[string]*jsonschema.Schema{
			"uuid":          nullable("string"),
			"riderId":       {Type: "integer"},
			"name":          nullable("string"),
			"gender":        nullable("string"),
			"country":       nullable("string"),
			"height":        nullable("number"),
			"weight":        nullable("number"),
			"zpCategory":    nullable("string"),
			"zpFTP":         nullable("number"),
			"CP":            nullable("number"),
			"AWC":           nullable("number"),
			"compoundScore": nullable("number"),
			"powerRating":   nullable("number"),
			"power":         passthroughSchema(),
			"race":          passthroughSchema(),
			"handicaps":     passthroughSchema(),
			"phenotype":     passthroughSchema(),
			"created":       stringSchema(),
			"modified":      stringSchema(),
		},
	}
}

var (
	magicLinkDocument = mustCompile(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"expires_at", "url"},
		Properties: map[string]*jsonschema.Schema{
			"uuid":       nullable("string"),
			"expires_at": stringSchema(),
			"url":        {Type: "string", MinLength: intPtr(1)},
		},
	})

	lookupDocument = mustCompile(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"cyclist": athleteSchema(),
			"athlete": athleteSchema(),
			"zracing": racingStatsSchema(),
		},
	})

	guildUpdateDocument = mustCompile(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"status", "guild_id"},
		Properties: map[string]*jsonschema.Schema{
			"status":          {Type: "string", Enum: []any{string(GuildJoin), string(GuildUpdateStatusUpdate)}},
			"guild_id":        discordIDSchema(false),
			"guild_name":      {Types: []string{"string", "null"}, MaxLength: intPtr(255)},
			"owner_name":      {Types: []string{"string", "null"}, MaxLength: intPtr(255)},
			"owner_id":        discordIDSchema(true),
			"member_count":    nullable("integer"),
			"categories":      {Type: "array"},
			"channels":        {Type: "array"},
			"roles":           {Type: "array"},
			"jump_url":        nullable("string"),
			"large":           {Type: "boolean"},
			"icon_url":        nullable("string"),
			"default_role_id": discordIDSchema(true),
			"guild_birthday":  nullable("string"),
		},
	})

	guildUpdateResponseDocument = mustCompile(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"status", "guild_created", "club_created"},
		Properties: map[string]*jsonschema.Schema{
			"status":        {Type: "boolean"},
			"guild_created": {Type: "boolean"},
			"club_created":  {Type: "boolean"},
		},
	})

	apiCheckDocument = mustCompile(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"source_ip":      nullable("string"),
			"server_version": nullable("string"),
		},
	})
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp reads an ISO-8601 timestamp and normalizes it to UTC.
// Timestamps without a zone are taken as UTC.
func parseTimestamp(path, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &SchemaValidationError{Path: path, Reason: fmt.Sprintf("invalid ISO-8601 timestamp %q", value)}
}

func parseOptionalUUID(path string, value *string) (*uuid.UUID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, &SchemaValidationError{Path: path, Reason: "invalid UUID", Err: err}
	}
	return &id, nil
}

// unmarshalField decodes raw into out, attributing failures to path.
func unmarshalField(path string, raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &SchemaValidationError{Path: path, Reason: "unexpected shape", Err: err}
	}
	return nil
}

// extraFields returns the members of raw that are not declared in known.
func extraFields(path string, raw json.RawMessage, known ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := unmarshalField(path, raw, &fields); err != nil {
		return nil, err
	}
	for _, name := range known {
		delete(fields, name)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}
