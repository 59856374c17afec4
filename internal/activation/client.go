package activation

import (
	"bytes"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/soloctl/internal/observability"
)

// DefaultSendTimeout bounds the whole dial/write/read exchange of one
// activation attempt. Activation is a human-timescale event; a primary that
// cannot answer within a second is treated as gone.
const DefaultSendTimeout = time.Second

// SendActivation asks whatever listens on loopback:port to come to the
// foreground. It returns true iff the reply trims to "ok". Every failure
// mode — refused connection, timeout, protocol mismatch — returns false:
// the caller is a duplicate launch about to exit and must never fail hard
// because the primary vanished between port-file read and connect.
func SendActivation(appID string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		log.Debug().Str("app_id", appID).Str("addr", addr).Err(err).Msg("activation.client dial failed")
		observability.RecordActivationSent(appID, observability.OutcomeFailed)
		return false
	}
	defer conn.Close()

	_ = conn.SetDeadline(deadline)
	if _, err := conn.Write([]byte(requestWord)); err != nil {
		log.Debug().Str("app_id", appID).Str("addr", addr).Err(err).Msg("activation.client write failed")
		observability.RecordActivationSent(appID, observability.OutcomeFailed)
		return false
	}

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		log.Debug().Str("app_id", appID).Str("addr", addr).Err(err).Msg("activation.client read failed")
		observability.RecordActivationSent(appID, observability.OutcomeFailed)
		return false
	}
	if string(bytes.TrimSpace(buf[:n])) != replyWord {
		log.Debug().Str("app_id", appID).Str("addr", addr).Int("bytes", n).
			Msg("activation.client unexpected reply")
		observability.RecordActivationSent(appID, observability.OutcomeFailed)
		return false
	}

	observability.RecordActivationSent(appID, observability.OutcomeOK)
	return true
}
