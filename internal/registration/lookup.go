package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// AthleteIdentifier selects the athlete to look up. It is implemented only by
// ByDiscordUser and ByZwiftID, so a lookup always names exactly one of them.
type AthleteIdentifier interface {
	queryParam() (key, value string)
	String() string
}

// ByDiscordUser identifies an athlete by Discord user snowflake.
type ByDiscordUser string

func (id ByDiscordUser) queryParam() (string, string) { return "discord_id", string(id) }

func (id ByDiscordUser) String() string { return "discord:" + string(id) }

// ByZwiftID identifies an athlete by Zwift account number.
type ByZwiftID int64

func (id ByZwiftID) queryParam() (string, string) {
	return "zwift_id", strconv.FormatInt(int64(id), 10)
}

func (id ByZwiftID) String() string { return "zwift:" + strconv.FormatInt(int64(id), 10) }

var errNoIdentifier = errors.New("athlete identifier is nil")

// LookupAthlete fetches the profile and racing stats of an athlete. It always
// returns a valid result; failures are described by its envelope.
func (c *Client) LookupAthlete(ctx context.Context, id AthleteIdentifier) (res AthleteLookupResult) {
	ctx, span := c.startSpan(ctx, "registration.LookupAthlete")
	res = AthleteLookupResult{Identifier: id}
	defer func() {
		if r := recover(); r != nil {
			res = lookupFailure(id, http.StatusInternalServerError, MessageLookupUnexpected, FailureUnknown, fmt.Errorf("panic: %v", r))
		}
		c.logOutcome(ctx, "lookup_athlete", res.Envelope, slog.Any("identifier", id))
		endSpan(span, res.Envelope)
	}()

	if id == nil {
		return lookupFailure(nil, http.StatusInternalServerError, MessageLookupUnexpected, FailureUnknown, errNoIdentifier)
	}
	key, value := id.queryParam()
	span.SetAttributes(attribute.String("registration.lookup_key", key))

	a := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/cyclists",
		rawQuery: url.Values{key: []string{value}}.Encode(),
		timeout:  c.cfg.LookupTimeout,
	})
	return resolveLookup(id, a)
}

func resolveLookup(id AthleteIdentifier, a attempt) AthleteLookupResult {
	switch {
	case !a.delivered():
		return lookupFailure(id, transportStatus(a.failure), transportLookupMessage(a.failure), a.failure, a.err)
	case a.status != http.StatusOK:
		env := remoteReported(a.status, extractDetail(a.body))
		return AthleteLookupResult{Envelope: env, Identifier: id}
	}
	athlete, stats, err := decodeLookup(a.body)
	if err != nil {
		contractErr := &RemoteContractError{Op: "lookup_athlete", Err: err}
		return lookupFailure(id, http.StatusUnprocessableEntity, MessageLookupInvalid, FailureRemoteContract, contractErr)
	}
	return AthleteLookupResult{Envelope: success(), Identifier: id, Athlete: athlete, Stats: stats}
}

func lookupFailure(id AthleteIdentifier, code int, message string, kind Failure, cause error) AthleteLookupResult {
	return AthleteLookupResult{Envelope: failure(code, message, kind, cause), Identifier: id}
}

// transportStatus is the status code reported for a call that produced no usable response.
func transportStatus(kind Failure) int {
	switch kind {
	case FailureTimeout:
		return http.StatusGatewayTimeout
	case FailureProtocol:
		return http.StatusBadGateway
	case FailureTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func transportLookupMessage(kind Failure) string {
	switch kind {
	case FailureTimeout:
		return MessageLookupTimeout
	case FailureProtocol:
		return MessageLookupProtocol
	case FailureTransport:
		return MessageLookupTransport
	default:
		return MessageLookupUnexpected
	}
}

// extractDetail reads the "detail" member of an error body, falling back to a
// generic message when the body is not JSON or carries no usable detail.
func extractDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return MessageRemoteUnknown
	}
	if detail, ok := payload.Detail.(string); ok && strings.TrimSpace(detail) != "" {
		return detail
	}
	return MessageRemoteUnknown
}
