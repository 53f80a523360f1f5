//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"session-lab/domain"
	"session-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives orchestrator notifications. Implementations must be
// safe to call from any goroutine.
type EventSink interface {
	Consume(ctx context.Context, n event.Notification) error
}

// Transport is the messaging overlay: naming, connection to the rendezvous
// server, subscription and routes.
type Transport interface {
	Connect(ctx context.Context, serverAddr string) (domain.ConnID, error)
	// Subscribe registers identity on the connection, proving the shared secret,
	// and returns the session surface bound to that identity.
	Subscribe(ctx context.Context, identity domain.Identity, secret string, conn domain.ConnID) (Endpoint, error)
	SetRoute(ctx context.Context, remote domain.Identity, conn domain.ConnID) error
	Disconnect(conn domain.ConnID) error
}

// Endpoint creates and accepts sessions for one subscribed identity.
type Endpoint interface {
	Identity() domain.Identity
	CreateSession(ctx context.Context, target domain.Identity, cfg domain.SessionConfig) (Session, error)
	// ListenForSession blocks until a peer opens a session with us or ctx ends.
	ListenForSession(ctx context.Context) (Session, error)
}

// Session is one conversation scope. Publish and Reply may be called
// concurrently with Receive; Receive itself has a single consumer.
type Session interface {
	ID() domain.SessionID
	Config() domain.SessionConfig
	Publish(ctx context.Context, payload []byte) error
	Reply(ctx context.Context, orig domain.Message, payload []byte) error
	Receive(ctx context.Context, timeout time.Duration) (domain.Message, error)
	Invite(ctx context.Context, identity domain.Identity) error
	Roster(ctx context.Context) ([]domain.Identity, error)
	Close(ctx context.Context) error
}
