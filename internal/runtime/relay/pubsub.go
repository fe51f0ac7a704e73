package relay

import (
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
)

// NewInProcessPubSub returns an in-memory Watermill pub/sub backed by Go
// channels, for local runs and tests. There is no replay: subscribers only
// see messages published after they subscribe. A nil logger falls back to
// the nop logger.
func NewInProcessPubSub(log loggingpkg.ServiceLogger) *gochannel.GoChannel {
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}
	return gochannel.NewGoChannel(gochannel.Config{}, loggingpkg.NewWatermillAdapter(log))
}
