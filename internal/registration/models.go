package registration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Athlete is a cyclist profile held by the registration service.
type Athlete struct {
	FirstName string
	LastName  string
	USACID    *int64 // national federation
	UCIID     *int64 // international federation
	ZwiftID   *int64
	StravaID  *int64
	DiscordID string
	IDs       map[string]any
	Created   time.Time
	Modified  time.Time
	// Extra holds members the bot does not declare, kept verbatim.
	Extra map[string]json.RawMessage
}

// Name returns the display name of the athlete.
func (a *Athlete) Name() string {
	if a == nil {
		return ""
	}
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// ZwiftVerified reports the ids.zwift_verified flag when the service sent one.
func (a *Athlete) ZwiftVerified() (bool, bool) {
	if a == nil || a.IDs == nil {
		return false, false
	}
	v, ok := a.IDs["zwift_verified"].(bool)
	return v, ok
}

type athleteWire struct {
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	USACID    *int64         `json:"usac_id"`
	UCIID     *int64         `json:"uci_id"`
	ZwiftID   *int64         `json:"zwift_id"`
	StravaID  *int64         `json:"strava_id"`
	DiscordID *string        `json:"discord_id"`
	IDs       map[string]any `json:"ids"`
	Created   string         `json:"created"`
	Modified  string         `json:"modified"`
}

var athleteKnownFields = []string{
	"first_name", "last_name", "usac_id", "uci_id", "zwift_id", "strava_id",
	"discord_id", "ids", "created", "modified",
}

func decodeAthlete(path string, raw json.RawMessage) (*Athlete, error) {
	if isNull(raw) {
		return nil, nil
	}
	var w athleteWire
	if err := unmarshalField(path, raw, &w); err != nil {
		return nil, err
	}
	created, err := parseTimestamp(joinPath(path, "created"), w.Created)
	if err != nil {
		return nil, err
	}
	modified, err := parseTimestamp(joinPath(path, "modified"), w.Modified)
	if err != nil {
		return nil, err
	}
	extra, err := extraFields(path, raw, athleteKnownFields...)
	if err != nil {
		return nil, err
	}
	a := &Athlete{
		FirstName: w.FirstName,
		LastName:  w.LastName,
		USACID:    w.USACID,
		UCIID:     w.UCIID,
		ZwiftID:   w.ZwiftID,
		StravaID:  w.StravaID,
		IDs:       w.IDs,
		Created:   created,
		Modified:  modified,
		Extra:     extra,
	}
	if w.DiscordID != nil {
		a.DiscordID = *w.DiscordID
	}
	return a, nil
}

// RacingStats is the racing record (power, category, handicaps, phenotype) of a rider.
// Nested structures are kept schema-less; HandicapProfile and PhenotypeProfile
// give typed views for rendering.
type RacingStats struct {
	UUID          *uuid.UUID
	RiderID       int64
	Name          string
	Gender        string
	Country       string
	Height        *float64
	Weight        *float64
	Category      string
	FTP           *float64
	CP            *float64
	AWC           *float64
	CompoundScore *float64
	PowerRating   *float64
	Power         map[string]any
	Race          map[string]any
	Handicaps     map[string]any
	Phenotype     map[string]any
	Created       time.Time
	Modified      time.Time
	Extra         map[string]json.RawMessage
}

type racingStatsWire struct {
	UUID          *string        `json:"uuid"`
	RiderID       int64          `json:"riderId"`
	Name          *string        `json:"name"`
	Gender        *string        `json:"gender"`
	Country       *string        `json:"country"`
	Height        *float64       `json:"height"`
	Weight        *float64       `json:"weight"`
	Category      *string        `json:"zpCategory"`
	FTP           *float64       `json:"zpFTP"`
	CP            *float64       `json:"CP"`
	AWC           *float64       `json:"AWC"`
	CompoundScore *float64       `json:"compoundScore"`
	PowerRating   *float64       `json:"powerRating"`
	Power         map[string]any `json:"power"`
	Race          map[string]any `json:"race"`
	Handicaps     map[string]any `json:"handicaps"`
	Phenotype     map[string]any `json:"phenotype"`
	Created       string         `json:"created"`
	Modified      string         `json:"modified"`
}

var racingStatsKnownFields = []string{
	"uuid", "riderId", "name", "gender", "country", "height", "weight",
	"zpCategory", "zpFTP", "CP", "AWC", "compoundScore", "powerRating",
	"power", "race", "handicaps", "phenotype", "created", "modified",
}

func decodeRacingStats(path string, raw json.RawMessage) (*RacingStats, error) {
	if isNull(raw) {
		return nil, nil
	}
	var w racingStatsWire
	if err := unmarshalField(path, raw, &w); err != nil {
		return nil, err
	}
	id, err := parseOptionalUUID(joinPath(path, "uuid"), w.UUID)
	if err != nil {
		return nil, err
	}
	created, err := parseTimestamp(joinPath(path, "created"), w.Created)
	if err != nil {
		return nil, err
	}
	modified, err := parseTimestamp(joinPath(path, "modified"), w.Modified)
	if err != nil {
		return nil, err
	}
	extra, err := extraFields(path, raw, racingStatsKnownFields...)
	if err != nil {
		return nil, err
	}
	return &RacingStats{
		UUID:          id,
		RiderID:       w.RiderID,
		Name:          deref(w.Name),
		Gender:        deref(w.Gender),
		Country:       deref(w.Country),
		Height:        w.Height,
		Weight:        w.Weight,
		Category:      deref(w.Category),
		FTP:           w.FTP,
		CP:            w.CP,
		AWC:           w.AWC,
		CompoundScore: w.CompoundScore,
		PowerRating:   w.PowerRating,
		Power:         w.Power,
		Race:          w.Race,
		Handicaps:     w.Handicaps,
		Phenotype:     w.Phenotype,
		Created:       created,
		Modified:      modified,
		Extra:         extra,
	}, nil
}

// HandicapProfile is the typed view of handicaps.profile.
type HandicapProfile struct {
	Flat        float64
	Rolling     float64
	Hilly       float64
	Mountainous float64
}

// HandicapProfile returns the handicap sub-scores, or false when the record has none.
// Missing sub-scores read as zero.
func (s *RacingStats) HandicapProfile() (HandicapProfile, bool) {
	if s == nil {
		return HandicapProfile{}, false
	}
	profile, ok := s.Handicaps["profile"].(map[string]any)
	if !ok {
		return HandicapProfile{}, false
	}
	return HandicapProfile{
		Flat:        number(profile["flat"]),
		Rolling:     number(profile["rolling"]),
		Hilly:       number(profile["hilly"]),
		Mountainous: number(profile["mountainous"]),
	}, true
}

// PhenotypeProfile is the typed view of the phenotype record.
type PhenotypeProfile struct {
	Value     string
	Bias      string
	Sprinter  float64
	Puncheur  float64
	Pursuiter float64
	Climber   float64
	TT        float64
}

// PhenotypeProfile returns the phenotype scores, or false when the record has none.
// Labels come from phenotype.value/bias, falling back to the top-level
// phenotype_value/phenotype_bias members.
func (s *RacingStats) PhenotypeProfile() (PhenotypeProfile, bool) {
	if s == nil {
		return PhenotypeProfile{}, false
	}
	scores, ok := s.Phenotype["scores"].(map[string]any)
	if !ok {
		return PhenotypeProfile{}, false
	}
	return PhenotypeProfile{
		Value:     s.phenotypeLabel("value", "phenotype_value"),
		Bias:      s.phenotypeLabel("bias", "phenotype_bias"),
		Sprinter:  number(scores["sprinter"]),
		Puncheur:  number(scores["puncheur"]),
		Pursuiter: number(scores["pursuiter"]),
		Climber:   number(scores["climber"]),
		TT:        number(scores["tt"]),
	}, true
}

func (s *RacingStats) phenotypeLabel(nested, topLevel string) string {
	if v, ok := s.Phenotype[nested].(string); ok && v != "" {
		return v
	}
	if raw, ok := s.Extra[topLevel]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil && v != "" {
			return v
		}
	}
	return ""
}

// MagicLink is a time-limited authorization URL issued by the registration service.
type MagicLink struct {
	URL       string
	ExpiresAt time.Time
	ID        *uuid.UUID
}

type magicLinkWire struct {
	UUID      *string `json:"uuid"`
	ExpiresAt string  `json:"expires_at"`
	URL       string  `json:"url"`
}

func decodeMagicLink(body []byte) (*MagicLink, error) {
	if _, err := magicLinkDocument.Decode(body); err != nil {
		return nil, err
	}
	var w magicLinkWire
	if err := unmarshalField("", body, &w); err != nil {
		return nil, err
	}
	id, err := parseOptionalUUID("uuid", w.UUID)
	if err != nil {
		return nil, err
	}
	expires, err := parseTimestamp("expires_at", w.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if expires.IsZero() {
		return nil, &SchemaValidationError{Path: "expires_at", Reason: "zero expiry"}
	}
	return &MagicLink{URL: w.URL, ExpiresAt: expires, ID: id}, nil
}

// decodeLookup reads an athlete lookup payload. The athlete may be sent as
// "cyclist" or "athlete"; either member may be absent or null.
func decodeLookup(body []byte) (*Athlete, *RacingStats, error) {
	fields, err := lookupDocument.Decode(body)
	if err != nil {
		return nil, nil, err
	}
	athletePath := "cyclist"
	rawAthlete, ok := fields[athletePath]
	if !ok || isNull(rawAthlete) {
		if alt, found := fields["athlete"]; found {
			athletePath, rawAthlete = "athlete", alt
		}
	}
	var athlete *Athlete
	if rawAthlete != nil {
		if athlete, err = decodeAthlete(athletePath, rawAthlete); err != nil {
			return nil, nil, err
		}
	}
	var stats *RacingStats
	if raw, ok := fields["zracing"]; ok {
		if stats, err = decodeRacingStats("zracing", raw); err != nil {
			return nil, nil, err
		}
	}
	return athlete, stats, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
