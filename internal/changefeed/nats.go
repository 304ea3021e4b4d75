package changefeed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn the bridge needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subject returns "<prefix>.<house_id>.<table>.<action>".
func Subject(prefix string, c Change) string {
	prefix = strings.TrimSuffix(prefix, ".")
	return fmt.Sprintf("%s.%d.%s.%s", prefix, c.HouseID, c.Table, c.Action)
}

// Bridge forwards every change on feed to pub as JSON. Publish failures are
// logged and dropped.
func Bridge(feed *Feed, pub Publisher, prefix string, logger *slog.Logger) (cancel func()) {
	return feed.Subscribe(Filter{}, func(c Change) {
		data, err := json.Marshal(c)
		if err != nil {
			logger.Error("marshal change", "table", c.Table, "error", err)
			return
		}
		subject := Subject(prefix, c)
		if err := pub.Publish(subject, data); err != nil {
			logger.Warn("publish change", "subject", subject, "error", err)
		}
	})
}

// ConnectNATS dials url with reconnect handling that logs through logger.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("stockhome"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}
