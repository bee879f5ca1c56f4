package notification

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/skillforge/skillforge/core"
)

const (
	maxBackoff        = 6 * time.Hour
	transientBase     = 30 * time.Second
	transientJitter   = 15 * time.Second
	provisionalMinute = time.Minute
)

// mockable
var jitterFunc func(max time.Duration) time.Duration = func(max time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(max)))
}

// SMTP codes that signal a transient provider-side condition worth a
// faster, jittered retry curve.
func isTransientCode(code int) bool {
	switch code {
	case 421, 450, 451, 452:
		return true
	}
	return false
}

// Shifts past this would overflow a time.Duration; the cap applies
// long before.
const maxBackoffShift = 20

// backoffDelay computes how long to wait after the given failed
// attempt (1-based). Transient SMTP rejections ramp from 30s doubling
// each attempt with up to 15s of jitter; everything else ramps in
// doubling minutes. Both curves cap at 6 hours, jitter included.
func backoffDelay(attempts, code int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if isTransientCode(code) {
		d := maxBackoff
		if attempts-1 < maxBackoffShift {
			d = transientBase << uint(attempts-1)
		}
		d += jitterFunc(transientJitter)
		if d > maxBackoff {
			d = maxBackoff
		}
		return d
	}
	if attempts >= maxBackoffShift {
		return maxBackoff
	}
	d := provisionalMinute << uint(attempts)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

var smtpCodePattern = regexp.MustCompile(`\b(4[0-9]{2}|5[0-9]{2})[ -]`)

// smtpCode extracts the SMTP reply code from a send error, falling
// back to scanning the message text. Returns 0 when none is found.
func smtpCode(err error) int {
	if err == nil {
		return 0
	}
	var se *core.SendError
	if errors.As(err, &se) && se.Code > 0 {
		return se.Code
	}
	if m := smtpCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// isReceivingRate detects the provider's per-address rate rejection, a
// 450 reply mentioning the receiving rate limit. It warrants pausing
// every queued email for that address, not just this one.
func isReceivingRate(code int, errText string) bool {
	if code != 450 {
		return false
	}
	if strings.Contains(errText, "ReceivingRate") {
		return true
	}
	return strings.Contains(strings.ToLower(errText), "receiving mail at a rate")
}
