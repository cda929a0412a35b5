package archive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/orchestra-survey/harps-pipeline/internal/metrics"
	"github.com/orchestra-survey/harps-pipeline/internal/retry"
)

// StateComplete is the terminal request state reported by the portal.
const StateComplete = "COMPLETE"

// RequestState fetches the status page for a request and extracts the
// reported state. found is false when the state marker is missing from
// the page, along with whether the request number was at least mentioned
// in the body (a useful diagnostic for half-rendered portal pages).
func (c *Client) RequestState(ctx context.Context, requestNumber int) (state string, found bool, listed bool, err error) {
	endpoint := fmt.Sprintf("%s/rh/requests/%s/%d", c.base, c.user, requestNumber)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return "", false, false, err
	}

	listed = strings.Contains(body, strconv.Itoa(requestNumber))
	state, found = ParseRequestState(body)
	return state, found, listed, nil
}

// AwaitComplete polls the status page until the portal reports COMPLETE,
// pausing according to the policy between checks. Malformed status pages
// and transport errors are transient: they are logged and polling
// continues. The default production policy never gives up; preparing a
// request can take the archive minutes to hours.
func (c *Client) AwaitComplete(ctx context.Context, requestNumber int, policy retry.Policy) error {
	log := c.log.With("request_number", requestNumber)

	for attempt := 1; ; attempt++ {
		state, found, listed, err := c.RequestState(ctx, requestNumber)
		if m := metrics.Get(); m != nil {
			m.PollAttempts.Inc()
		}

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("status check failed, will retry", "error", err)

		case !found:
			// The portal occasionally redirects to an error page mid-flight.
			listing := "NOT LISTED"
			if listed {
				listing = "LISTED"
			}
			log.Warn("status page missing state marker, will retry", "request", listing)

		case state == StateComplete:
			log.Info("request complete")
			return nil

		default:
			log.Info("request not ready", "state", state)
		}

		if err := retry.Wait(ctx, policy, attempt); err != nil {
			return fmt.Errorf("await request %d: %w", requestNumber, err)
		}
	}
}
