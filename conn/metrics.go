package conn

// Outcome classifies the result of an operation on a connection.
type Outcome int

const (
	Success Outcome = iota
	// Transient is a client error that leaves the connection usable.
	Transient
	// Fatal is a client error that required a reconnection.
	Fatal
	// Codec is an encoding or decoding error.
	Codec
)

var outcomeNames = [...]string{"success", "transient", "fatal", "codec"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// MetricsReporter can be passed to a Machine to receive metrics
// about the connection as it is used.
type MetricsReporter interface {
	// ConnectAttempt is called after each connection attempt, with
	// a nil error on success.
	ConnectAttempt(err error)
	// Operation is called after each receive or send.
	Operation(op string, o Outcome)
	// Exhausted is called once when the reconnect budget is spent.
	Exhausted(err error)
}

type nopReporter struct{}

func (nopReporter) ConnectAttempt(error) {}

func (nopReporter) Operation(string, Outcome) {}

func (nopReporter) Exhausted(error) {}
