package jobqueue

import (
	"os"
	"time"

	"github.com/riverqueue/river"
)

// Queue names. Idea generation is long-running LLM work; media
// mirroring is short network I/O. Separate queues keep a backlog of
// one from starving the other.
const (
	QueueIdeas = "ideas"
	QueueMedia = "media"
)

// QueueConfig holds the tunable parameters for the job queue.
type QueueConfig struct {
	IdeaWorkers  int
	MediaWorkers int

	MaxRetries int
	JobTimeout time.Duration
}

func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		IdeaWorkers:  2,
		MediaWorkers: 8,
		MaxRetries:   10,
		JobTimeout:   5 * time.Minute,
	}
}

// DevelopmentQueueConfig fails fast so broken jobs surface quickly.
func DevelopmentQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()
	config.IdeaWorkers = 1
	config.MediaWorkers = 2
	config.MaxRetries = 3
	config.JobTimeout = 2 * time.Minute
	return config
}

func GetQueueConfig() *QueueConfig {
	if os.Getenv("ACQ_ENV") == "development" {
		return DevelopmentQueueConfig()
	}
	return DefaultQueueConfig()
}

// RiverQueueConfig converts our config to River's queue format.
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: 2},
		QueueIdeas:         {MaxWorkers: c.IdeaWorkers},
		QueueMedia:         {MaxWorkers: c.MediaWorkers},
	}
}
