package sdk

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// refillLocked requests creatives for every (orientation, type) pair whose
// buffer holds fewer than the session minimum. All deficient pairs go into a
// single content request; nothing is sent when none is deficient.
func (c *client) refillLocked(orientations []Orientation, adTypes []AdType) {
	if c.closed || c.session == nil {
		return
	}

	combinations := make(map[Orientation][]AdType)
	for _, o := range orientations {
		for _, t := range adTypes {
			if c.buffer.Count(o, t) < c.session.bufferMin {
				combinations[o] = append(combinations[o], t)
			}
		}
	}
	if len(combinations) == 0 {
		return
	}

	gen := c.paramsGen
	sess := c.session
	body := contentRequest{
		Combinations:    combinations,
		ExtraParameters: c.params.clone(),
	}

	c.requestLocked(pathContent, body, requestOptions{rejectOnUnauthorized: true}, func(raw json.RawMessage, err error) {
		if err != nil {
			if !IsUnauthorized(err) {
				return
			}
			if c.session != sess {
				c.logger.Debug("Ignoring unauthorized content response for a replaced session")
				return
			}
			c.reinitLocked()
			return
		}
		if gen != c.paramsGen {
			c.logger.Debug("Discarding content fetched for outdated session or parameters")
			return
		}

		var resp contentResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			e := NewError(ErrorTypeUnknown, "decoding content response", fmt.Errorf("%w: %v", ErrInvalidResponse, err))
			e.Path = pathContent
			c.emitErrorLocked(e)
			return
		}

		creatives := resp.creatives()
		c.buffer.AddAll(creatives)
		c.reportLevelsLocked()
		c.logger.WithFields(logrus.Fields{
			"received": len(creatives),
		}).Debug("Buffer refilled")
	})
}

// periodicRefill tops up every requested pair
func (c *client) periodicRefill() {
	defer c.recoverBackground("refill check")

	c.lock()
	defer c.unlock()
	if c.args == nil || c.state != StateActive {
		return
	}
	c.refillLocked(c.args.orientations, c.args.adTypes)
}

// SetParameters replaces the targeting parameters and refetches everything
func (c *client) SetParameters(params Parameters) {
	c.lock()
	defer c.unlock()

	if c.closed {
		return
	}

	c.params = params.clone()
	c.buffer.Empty()
	c.paramsGen++
	c.retries.cancel(pathContent)
	c.reportLevelsLocked()

	if c.args != nil {
		c.refillLocked(c.args.orientations, c.args.adTypes)
	}
}
