package config

type StorageDriver int

const (
	Postgres StorageDriver = iota + 1
	SQLite
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	}
	return "unknown"
}

// ParseStorageDriver is the inverse of String.
func ParseStorageDriver(s string) (StorageDriver, bool) {
	switch s {
	case "postgres", "postgresql":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return 0, false
}

// MessageQueueDriver selects the transport used to share quick-poll
// notifications between processes.
type MessageQueueDriver int

const (
	NoBroker MessageQueueDriver = iota
	RabbitMQ
	Redis
)

func (d MessageQueueDriver) String() string {
	switch d {
	case NoBroker:
		return "none"
	case RabbitMQ:
		return "rabbitmq"
	case Redis:
		return "redis"
	default:
		return "unknown"
	}
}
