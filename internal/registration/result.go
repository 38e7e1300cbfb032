package registration

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Status messages rendered to Discord users. They are part of the bot's
// observable behavior; change them deliberately.
const (
	MessageOK = "OK"

	MessageLookupTimeout    = "Request timed out while looking up the cyclist."
	MessageLookupProtocol   = "An error occurred while looking up the cyclist."
	MessageLookupTransport  = "An error occurred while connecting to the registration service."
	MessageLookupInvalid    = "Invalid input"
	MessageLookupUnexpected = "Unexpected error while looking up cyclist"
	MessageRemoteUnknown    = "Unknown error from the registration service."

	MessageMagicLinkFailed   = "Unknown error building magic link"
	MessageMagicLinkContract = "The registration service returned an invalid magic link."

	MessageGuildInvalid  = "Invalid guild update payload"
	MessageGuildContract = "The registration service returned an invalid guild update response."
	MessageGuildFailed   = "Error posting guild update"
)

// Envelope is the outcome shared by every client operation.
type Envelope struct {
	StatusCode    int
	StatusMessage string
	Failure       Failure
	// Cause is the underlying error for logs. It is never shown to users.
	Cause error
}

// OK reports whether the remote call succeeded.
func (e Envelope) OK() bool {
	return e.StatusCode == http.StatusOK && e.Failure == FailureNone
}

func (e Envelope) valid() error {
	if e.StatusCode < 100 || e.StatusCode > 599 {
		return fmt.Errorf("status code %d out of range", e.StatusCode)
	}
	if strings.TrimSpace(e.StatusMessage) == "" {
		return errors.New("status message is empty")
	}
	if e.StatusCode == http.StatusOK && e.Failure != FailureNone {
		return fmt.Errorf("status 200 with failure %q", e.Failure)
	}
	if e.StatusCode != http.StatusOK && e.Failure == FailureNone {
		return fmt.Errorf("status %d without failure kind", e.StatusCode)
	}
	return nil
}

func failure(code int, message string, kind Failure, cause error) Envelope {
	return Envelope{StatusCode: code, StatusMessage: message, Failure: kind, Cause: cause}
}

func success() Envelope {
	return Envelope{StatusCode: http.StatusOK, StatusMessage: MessageOK}
}

// remoteReported builds the envelope for a non-200 answer. An empty body
// falls back to the standard status text.
func remoteReported(code int, message string) Envelope {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("HTTP %d", code)
	}
	return failure(code, message, FailureRemoteReported, fmt.Errorf("remote status %d", code))
}

// MagicLinkResult is the outcome of IssueMagicLink. Link is set exactly when
// StatusCode is 200.
type MagicLinkResult struct {
	Envelope
	Kind      LinkKind
	DiscordID string
	GuildID   string
	GuildName string
	Link      *MagicLink
}

// Valid checks the status/payload coupling.
func (r MagicLinkResult) Valid() error {
	if err := r.Envelope.valid(); err != nil {
		return err
	}
	if r.StatusCode == http.StatusOK {
		if r.Link == nil || r.Link.URL == "" || r.Link.ExpiresAt.IsZero() {
			return errors.New("status 200 without url and expiry")
		}
		return nil
	}
	if r.Link != nil {
		return fmt.Errorf("status %d with a link payload", r.StatusCode)
	}
	return nil
}

// AthleteLookupResult is the outcome of LookupAthlete. On success Athlete and
// Stats are each optional; on failure both are nil.
type AthleteLookupResult struct {
	Envelope
	Identifier AthleteIdentifier
	Athlete    *Athlete
	Stats      *RacingStats
}

// Valid checks that failures carry no payload.
func (r AthleteLookupResult) Valid() error {
	if err := r.Envelope.valid(); err != nil {
		return err
	}
	if r.StatusCode != http.StatusOK && (r.Athlete != nil || r.Stats != nil) {
		return fmt.Errorf("status %d with a lookup payload", r.StatusCode)
	}
	return nil
}

// GuildUpdateResult is the outcome of PostGuildUpdate.
type GuildUpdateResult struct {
	Envelope
	GuildID  string
	Response *GuildUpdateResponse
}

// Valid checks that Response is set exactly on success.
func (r GuildUpdateResult) Valid() error {
	if err := r.Envelope.valid(); err != nil {
		return err
	}
	if (r.StatusCode == http.StatusOK) != (r.Response != nil) {
		return fmt.Errorf("status %d inconsistent with response payload", r.StatusCode)
	}
	return nil
}

// APICheckResult is the outcome of CheckAPI.
type APICheckResult struct {
	Envelope
	Outcome string
	Check   *APICheck
}

// Valid checks that an outcome label is always present.
func (r APICheckResult) Valid() error {
	if err := r.Envelope.valid(); err != nil {
		return err
	}
	if r.Outcome == "" {
		return errors.New("api check without outcome")
	}
	return nil
}
