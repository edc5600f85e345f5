// Package feed fans engine trades out to the world: Kafka, websocket clients,
// Prometheus and the log.
package feed

import (
	"encoding/json"
	"io"

	"go.uber.org/multierr"

	"order-matching-engine/src/engine"
)

// Encode is the wire form shared by every feed.
func Encode(ev engine.TradeEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// Close closes every closer and returns all failures combined.
func Close(closers ...io.Closer) error {
	var err error
	for _, c := range closers {
		if c == nil {
			continue
		}
		err = multierr.Append(err, c.Close())
	}
	return err
}
