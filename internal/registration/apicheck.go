package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// API check outcome labels shown by the info command.
const (
	CheckPassed     = "PASSED"
	CheckFailed     = "FAILED"
	CheckHTTPError  = "HTTP error while connecting to API"
	CheckUnexpected = "Unexpected API error during testing"
)

// APICheck is the registration service's self-test answer.
type APICheck struct {
	SourceIP      string
	ServerVersion string
	Other         json.RawMessage
}

func decodeAPICheck(body []byte) (*APICheck, error) {
	fields, err := apiCheckDocument.Decode(body)
	if err != nil {
		return nil, err
	}
	var check APICheck
	if raw, ok := fields["source_ip"]; ok && !isNull(raw) {
		if err := unmarshalField("source_ip", raw, &check.SourceIP); err != nil {
			return nil, err
		}
	}
	if raw, ok := fields["server_version"]; ok && !isNull(raw) {
		if err := unmarshalField("server_version", raw, &check.ServerVersion); err != nil {
			return nil, err
		}
	}
	if raw, ok := fields["other"]; ok {
		check.Other = raw
	}
	return &check, nil
}

// CheckAPI calls the registration service's test endpoint and labels the outcome.
func (c *Client) CheckAPI(ctx context.Context) (res APICheckResult) {
	ctx, span := c.startSpan(ctx, "registration.CheckAPI")
	defer func() {
		if r := recover(); r != nil {
			res = APICheckResult{
				Envelope: failure(http.StatusInternalServerError, CheckUnexpected, FailureUnknown, fmt.Errorf("panic: %v", r)),
				Outcome:  CheckUnexpected,
			}
		}
		c.logOutcome(ctx, "check_api", res.Envelope, slog.String("outcome", res.Outcome))
		endSpan(span, res.Envelope)
	}()

	a := c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/api_test",
		timeout: c.cfg.CheckTimeout,
	})
	switch {
	case !a.delivered() && a.failure == FailureUnknown:
		return APICheckResult{Envelope: failure(http.StatusInternalServerError, CheckUnexpected, a.failure, a.err), Outcome: CheckUnexpected}
	case !a.delivered():
		return APICheckResult{Envelope: failure(transportStatus(a.failure), CheckHTTPError, a.failure, a.err), Outcome: CheckHTTPError}
	case a.status != http.StatusOK:
		return APICheckResult{Envelope: remoteReported(a.status, extractDetail(a.body)), Outcome: CheckHTTPError}
	}
	check, err := decodeAPICheck(a.body)
	if err != nil {
		contractErr := &RemoteContractError{Op: "check_api", Err: err}
		return APICheckResult{
			Envelope: failure(http.StatusUnprocessableEntity, CheckUnexpected, FailureRemoteContract, contractErr),
			Outcome:  CheckUnexpected,
		}
	}
	outcome := CheckFailed
	if check.SourceIP != "" {
		outcome = CheckPassed
	}
	return APICheckResult{Envelope: success(), Outcome: outcome, Check: check}
}
